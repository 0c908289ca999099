package http

import (
	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

func deviceResponse(v service.GuestView) portalsdk.Device {
	return portalsdk.Device{
		ID:           v.ID,
		MACAddress:   v.MACAddress,
		OwnerUserID:  v.OwnerUserID,
		IPAddress:    v.IPAddress,
		DeviceInfo:   v.DeviceInfo,
		Nickname:     v.Nickname,
		AuthorizedAt: v.AuthorizedAt,
		ExpiresAt:    v.ExpiresAt,
		LastSeen:     v.LastSeen,
		AuthCount:    v.AuthCount,
		IsExpired:    v.IsExpired,
	}
}

func deviceResponses(views []service.GuestView) []portalsdk.Device {
	out := make([]portalsdk.Device, len(views))
	for i, v := range views {
		out[i] = deviceResponse(v)
	}
	return out
}

// batchResponse never reports a nil NotFound so clients always see a list.
func batchResponse(res service.BatchResult) portalsdk.BatchResponse {
	out := portalsdk.BatchResponse{
		Processed: res.Processed,
		Failed:    res.Failed,
		NotFound:  res.NotFound,
		Errors:    make([]portalsdk.BatchItemError, len(res.Errors)),
	}
	if out.NotFound == nil {
		out.NotFound = []string{}
	}
	for i, e := range res.Errors {
		out.Errors[i] = portalsdk.BatchItemError{ID: e.ID, Error: e.Err.Error(), Committed: e.Committed}
	}
	return out
}

func activityResponses(events []domain.ActivityEvent) []portalsdk.ActivityEvent {
	out := make([]portalsdk.ActivityEvent, len(events))
	for i, e := range events {
		out[i] = portalsdk.ActivityEvent{
			ID:         e.ID,
			Kind:       string(e.Kind),
			UserID:     e.UserID,
			GuestID:    e.GuestID,
			MACAddress: e.MACAddress,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt,
		}
	}
	return out
}

// sessionResponse mirrors service.Session on the wire.
func sessionResponse(s service.Session) portalsdk.SessionResponse {
	return portalsdk.SessionResponse{
		AccessToken: s.Token,
		ExpiresAt:   s.ExpiresAt,
		UserID:      s.UserID,
		Role:        s.Role,
	}
}

func totpResponse(e domain.TOTPEnrollment) portalsdk.TOTPEnrollment {
	return portalsdk.TOTPEnrollment{Secret: e.Secret, URL: e.URL, Issuer: e.Issuer, Account: e.Account}
}
