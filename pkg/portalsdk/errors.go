package portalsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error codes returned by the portal.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeNoValidChallenge   = "no_valid_challenge"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeTooManyAttempts    = "too_many_attempts"
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeTooManyResends     = "too_many_resends"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeTOTPRequired       = "totp_required"
	ErrorCodeInvalidTOTP        = "invalid_totp"
	ErrorCodeTOTPState          = "totp_state"
	ErrorCodeNotificationFailed = "notification_failed"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeServerError        = "server_error"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
	Details     map[string]any

	// RetryAfter is parsed from the Retry-After header when present.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Description)
}

// AttemptsRemaining reports how many verification attempts are left after
// an invalid_code response.
func (e *APIError) AttemptsRemaining() (int, bool) {
	v, ok := e.Details["attempts_remaining"].(float64)
	return int(v), ok
}

// RetryAt reports when a rate limited resend becomes available.
func (e *APIError) RetryAt() (time.Time, bool) {
	s, ok := e.Details["retry_at"].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, err == nil
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Error
		apiErr.Description = errResp.ErrorDescription
		apiErr.Details = errResp.Details
		return apiErr
	}

	// Bearer failures from the authn middleware only carry a header.
	if h := resp.Header.Get("WWW-Authenticate"); strings.Contains(h, "invalid_token") {
		apiErr.Code = ErrorCodeInvalidToken
		return apiErr
	}

	apiErr.Code = http.StatusText(resp.StatusCode)
	apiErr.Description = strings.TrimSpace(string(body))
	return apiErr
}
