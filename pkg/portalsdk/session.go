package portalsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Session is an authenticated view of the API. Guest sessions can manage
// their own devices, admin sessions can manage every grant.
type Session struct {
	client      *Client
	accessToken string
	expiresAt   time.Time
	userID      string
}

// AccessToken returns the bearer token.
func (s *Session) AccessToken() string { return s.accessToken }

// ExpiresAt returns when the token stops being accepted.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// UserID is set for sessions created by AdminLogin.
func (s *Session) UserID() string { return s.userID }

// ============================================================================
// Guest
// ============================================================================

// ListDevices returns the caller's authorized devices.
func (s *Session) ListDevices(ctx context.Context) ([]Device, error) {
	var out []Device
	if err := s.getJSON(ctx, "/v1/me/devices", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameDevice sets the nickname on one of the caller's devices.
func (s *Session) RenameDevice(ctx context.Context, id, nickname string) (*Device, error) {
	resp, err := s.client.doJSON(ctx, http.MethodPatch, "/v1/me/devices/"+url.PathEscape(id), s.accessToken, RenameRequest{Nickname: nickname})
	if err != nil {
		return nil, err
	}

	var out Device
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Admin
// ============================================================================

// Logout records the end of an admin session.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.client.doRequest(ctx, http.MethodPost, "/v1/admin/logout", s.accessToken, nil, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// EnrollTOTP starts second factor enrollment.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollment, error) {
	resp, err := s.client.doRequest(ctx, http.MethodPost, "/v1/admin/totp/enroll", s.accessToken, nil, nil)
	if err != nil {
		return nil, err
	}

	var out TOTPEnrollment
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnableTOTP confirms enrollment with a code from the authenticator.
func (s *Session) EnableTOTP(ctx context.Context, code string) error {
	resp, err := s.client.doJSON(ctx, http.MethodPost, "/v1/admin/totp/enable", s.accessToken, TOTPEnableRequest{Code: code})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ListGuests returns the most recent grants, newest first. limit <= 0 uses
// the server default.
func (s *Session) ListGuests(ctx context.Context, limit int) ([]Device, error) {
	path := "/v1/admin/guests"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out []Device
	if err := s.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListActiveGuests returns only unexpired grants.
func (s *Session) ListActiveGuests(ctx context.Context) ([]Device, error) {
	var out []Device
	if err := s.getJSON(ctx, "/v1/admin/guests?active=true", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtendGuests pushes each grant's expiry out by days.
func (s *Session) ExtendGuests(ctx context.Context, ids []string, days int) (*BatchResponse, error) {
	return s.batch(ctx, "/v1/admin/guests/extend", ExtendRequest{IDs: ids, Days: days})
}

// RevokeGuests expires each grant and kicks the device.
func (s *Session) RevokeGuests(ctx context.Context, ids []string) (*BatchResponse, error) {
	return s.batch(ctx, "/v1/admin/guests/revoke", RevokeRequest{IDs: ids})
}

// Activity returns recent audit events, newest first.
func (s *Session) Activity(ctx context.Context, limit int) ([]ActivityEvent, error) {
	path := "/v1/admin/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out []ActivityEvent
	if err := s.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Session) batch(ctx context.Context, path string, body any) (*BatchResponse, error) {
	resp, err := s.client.doJSON(ctx, http.MethodPost, path, s.accessToken, body)
	if err != nil {
		return nil, err
	}

	var out BatchResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) getJSON(ctx context.Context, path string, target any) error {
	resp, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}
