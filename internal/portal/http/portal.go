package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/portal/internal/portal/controller"
	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// PortalHandler serves the unauthenticated captive portal flow: request a
// code, resend it, verify it and get the device online.
type PortalHandler struct {
	Verification *service.VerificationService
	Users        *service.UserService
	Guests       *service.GuestService
	Sessions     *service.AdminSessionService
}

// HandleRequestCode issues a fresh code for the email in the body.
func (h *PortalHandler) HandleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.CodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.Verification.Issue(r.Context(), req.Email, req.Name); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *PortalHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.ResendRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.Verification.Resend(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleVerify consumes the code, then authorises the device for the
// account the email belongs to and returns a guest session for managing it.
func (h *PortalHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req portalsdk.VerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}
	if req.MACAddress == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "mac is required")
		return
	}
	// Reject a bad MAC before Verify consumes the code.
	mac, err := controller.NormalizeMAC(req.MACAddress)
	if err != nil {
		writeServiceError(w, r, service.ErrInvalidMAC)
		return
	}

	name, err := h.Verification.Verify(ctx, req.Email, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, err := h.Users.GetOrCreateGuest(ctx, req.Email, name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	ip := req.IPAddress
	if ip == "" {
		ip = httpx.IPKeyExtractor(r)
	}
	res, err := h.Guests.Authorize(ctx, service.AuthorizeRequest{
		OwnerUserID: user.ID,
		MACAddress:  mac,
		IPAddress:   ip,
		DeviceInfo:  firstNonEmpty(req.DeviceInfo, r.UserAgent()),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sess, err := h.Sessions.IssueGuestSession(user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log.Info("guest verified",
		slog.String("user_id", user.ID),
		slog.String("guest_id", res.Record.ID),
		slog.Bool("returning", res.IsReturning),
		slog.Bool("controller_synced", res.ControllerSynced),
	)

	httpx.WriteJSON(w, http.StatusOK, portalsdk.VerifyResponse{
		UserID: user.ID,
		Name:   user.DisplayName,
		Device: deviceResponse(service.GuestView{
			GuestAuthorization: res.Record,
			IsExpired:          false,
		}),
		IsReturning:      res.IsReturning,
		ControllerSynced: res.ControllerSynced,
		AccessToken:      sess.Token,
		ExpiresAt:        sess.ExpiresAt,
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
