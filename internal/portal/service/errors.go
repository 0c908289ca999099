package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation matches every input error; the specific sentinels below
	// wrap it.
	ErrValidation = errors.New("invalid input")

	ErrInvalidEmail    = fmt.Errorf("%w: email", ErrValidation)
	ErrInvalidMAC      = fmt.Errorf("%w: mac address", ErrValidation)
	ErrInvalidDuration = fmt.Errorf("%w: duration", ErrValidation)
	ErrInvalidCode     = fmt.Errorf("%w: code", ErrValidation)

	// ErrNoValidChallenge covers never issued, used and expired alike so
	// callers cannot tell them apart.
	ErrNoValidChallenge    = errors.New("no valid verification challenge")
	ErrNoPendingChallenge  = errors.New("no pending verification challenge")
	ErrWrongCode           = errors.New("wrong verification code")
	ErrMaxAttemptsExceeded = errors.New("too many verification attempts")
	ErrRateLimited         = errors.New("rate limited")
	ErrTooManyResends      = errors.New("too many resends")

	ErrRecordNotFound = errors.New("record not found")

	ErrStore        = errors.New("store failure")
	ErrNotification = errors.New("notification failed")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTOTPRequired       = errors.New("totp code required")
	ErrInvalidTOTPCode    = errors.New("invalid totp code")
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
	ErrTOTPNotEnrolled    = errors.New("totp not enrolled")
)

// WrongCodeError reports a mismatched code and how many attempts remain.
type WrongCodeError struct {
	Remaining int
}

func (e *WrongCodeError) Error() string {
	return fmt.Sprintf("wrong verification code: %d attempts remaining", e.Remaining)
}

func (e *WrongCodeError) Is(target error) bool { return target == ErrWrongCode }

// RateLimitedError carries the instant the caller may retry.
type RateLimitedError struct {
	RetryAt time.Time
}

func (e *RateLimitedError) Error() string {
	return "rate limited until " + e.RetryAt.UTC().Format(time.RFC3339)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// RetryAfter is the wait from now, rounded up to whole seconds.
func (e *RateLimitedError) RetryAfter(now time.Time) time.Duration {
	d := e.RetryAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
