package http

import (
	"net/http"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

// DevicesHandler lets a verified guest see and label their own devices.
type DevicesHandler struct {
	Guests *service.GuestService
}

func (h *DevicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.Guests.ListForUser(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deviceResponses(views))
}

func (h *DevicesHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	var req portalsdk.RenameRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	v, err := h.Guests.Rename(r.Context(), httpx.UserID(r.Context()), r.PathValue("id"), req.Nickname)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deviceResponse(v))
}
