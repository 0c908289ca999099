package portalsdk

import "time"

// ============================================================================
// Portal (unauthenticated)
// ============================================================================

type CodeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type ResendRequest struct {
	Email string `json:"email"`
}

// VerifyRequest carries the code plus the device details the controller
// appended to the captive portal redirect.
type VerifyRequest struct {
	Email      string `json:"email"`
	Code       string `json:"code"`
	MACAddress string `json:"mac"`
	IPAddress  string `json:"ip,omitempty"`
	DeviceInfo string `json:"device_info,omitempty"`
}

type VerifyResponse struct {
	UserID           string    `json:"user_id"`
	Name             string    `json:"name"`
	Device           Device    `json:"device"`
	IsReturning      bool      `json:"is_returning"`
	ControllerSynced bool      `json:"controller_synced"`
	AccessToken      string    `json:"access_token"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// ============================================================================
// Devices
// ============================================================================

type Device struct {
	ID           string    `json:"id"`
	MACAddress   string    `json:"mac"`
	OwnerUserID  string    `json:"owner_user_id"`
	IPAddress    string    `json:"ip,omitempty"`
	DeviceInfo   string    `json:"device_info,omitempty"`
	Nickname     string    `json:"nickname,omitempty"`
	AuthorizedAt time.Time `json:"authorized_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastSeen     time.Time `json:"last_seen"`
	AuthCount    int       `json:"auth_count"`
	IsExpired    bool      `json:"is_expired"`
}

type RenameRequest struct {
	Nickname string `json:"nickname"`
}

// ============================================================================
// Admin
// ============================================================================

type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTP     string `json:"totp,omitempty"`
}

type SessionResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
}

type TOTPEnrollment struct {
	Secret  string `json:"secret"`
	URL     string `json:"otpauth_url"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

type TOTPEnableRequest struct {
	Code string `json:"code"`
}

type ExtendRequest struct {
	IDs  []string `json:"ids"`
	Days int      `json:"days"`
}

type RevokeRequest struct {
	IDs []string `json:"ids"`
}

type BatchItemError struct {
	ID        string `json:"id"`
	Error     string `json:"error"`
	Committed bool   `json:"committed"`
}

// BatchResponse reports a batch. Processed counts extended or revoked
// grants depending on the endpoint.
type BatchResponse struct {
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	NotFound  []string         `json:"not_found"`
	Errors    []BatchItemError `json:"errors"`
}

type ActivityEvent struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	UserID     string         `json:"user_id,omitempty"`
	GuestID    string         `json:"guest_id,omitempty"`
	MACAddress string         `json:"mac,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ============================================================================
// Health
// ============================================================================

type HealthChecks struct {
	Database string `json:"database"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error            string         `json:"error"`
	ErrorDescription string         `json:"error_description,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}
