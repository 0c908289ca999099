package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

type AdminHandler struct {
	Sessions *service.AdminSessionService
	Guests   *service.GuestService
	Activity *service.ActivityService
}

func (h *AdminHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.AdminLoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	sess, err := h.Sessions.Login(r.Context(), req.Email, req.Password, req.TOTP)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h *AdminHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Logout(r.Context(), httpx.UserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) HandleEnrollTOTP(w http.ResponseWriter, r *http.Request) {
	enrol, err := h.Sessions.EnrollTOTP(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, totpResponse(enrol))
}

func (h *AdminHandler) HandleEnableTOTP(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.TOTPEnableRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.Sessions.EnableTOTP(r.Context(), httpx.UserID(r.Context()), req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListGuests lists grants. ?active=true restricts the listing to
// unexpired grants; otherwise ?limit bounds a most-recent-first listing.
func (h *AdminHandler) HandleListGuests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		views []service.GuestView
		err   error
	)
	if active, _ := strconv.ParseBool(q.Get("active")); active {
		views, err = h.Guests.ListActive(r.Context())
	} else {
		views, err = h.Guests.ListRecent(r.Context(), queryInt(q.Get("limit")))
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deviceResponses(views))
}

func (h *AdminHandler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.ExtendRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.Guests.ExtendMany(r.Context(), httpx.UserID(r.Context()), req.IDs, req.Days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, batchResponse(res))
}

func (h *AdminHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.RevokeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.Guests.RevokeMany(r.Context(), httpx.UserID(r.Context()), req.IDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, batchResponse(res))
}

func (h *AdminHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	events, err := h.Activity.Recent(r.Context(), queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, activityResponses(events))
}

// queryInt parses a non-negative integer parameter, treating anything else
// as unset.
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
