package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/service"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

// writeServiceError maps a service error onto a status and body. Anything
// unrecognised is logged and reported as a server error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		wrong *service.WrongCodeError
		rle   *service.RateLimitedError
	)

	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())

	// Never issued, used and expired share one body.
	case errors.Is(err, service.ErrNoValidChallenge), errors.Is(err, service.ErrNoPendingChallenge):
		httpx.WriteError(w, http.StatusNotFound, "no_valid_challenge", "No valid verification code for this email")

	case errors.As(err, &wrong):
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{
			Error:       "invalid_code",
			Description: "The verification code is incorrect",
			Extra:       map[string]any{"attempts_remaining": wrong.Remaining},
		})

	case errors.Is(err, service.ErrMaxAttemptsExceeded):
		httpx.WriteError(w, http.StatusTooManyRequests, "too_many_attempts", "Too many attempts, request a new code")

	case errors.As(err, &rle):
		secs := max(int(rle.RetryAfter(time.Now())/time.Second), 1)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		httpx.WriteJSON(w, http.StatusTooManyRequests, httpx.ErrorBody{
			Error:       "rate_limited",
			Description: "Please wait before requesting another code",
			Extra:       map[string]any{"retry_at": rle.RetryAt},
		})

	case errors.Is(err, service.ErrTooManyResends):
		httpx.WriteError(w, http.StatusTooManyRequests, "too_many_resends", "Too many resends, start again")

	case errors.Is(err, service.ErrRecordNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Record not found")

	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, service.ErrTOTPRequired):
		httpx.WriteError(w, http.StatusUnauthorized, "totp_required", "A TOTP code is required")
	case errors.Is(err, service.ErrInvalidTOTPCode):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_totp", "The TOTP code is incorrect")
	case errors.Is(err, service.ErrTOTPAlreadyEnabled), errors.Is(err, service.ErrTOTPNotEnrolled):
		httpx.WriteError(w, http.StatusConflict, "totp_state", err.Error())

	case errors.Is(err, service.ErrNotification):
		slogx.FromContext(r.Context()).Error("notification failed", slog.Any("error", err))
		httpx.WriteError(w, http.StatusBadGateway, "notification_failed", "Could not deliver the verification code")

	default:
		slogx.FromContext(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}

func writeBadBody(w http.ResponseWriter, err error) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
}
