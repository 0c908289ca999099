package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/notify"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	DefaultCodeTTL          = 10 * time.Minute
	DefaultResendCooldown   = 30 * time.Second
	DefaultMaxResends       = 3
	DefaultMaxVerifyAttempt = 5
	DefaultCodeLength       = 6

	defaultChallengeRetention = 24 * time.Hour
	maxNameLength             = 100

	// resendRaces bounds how often Resend retries when a concurrent write
	// changed the row between its conditional update and the re-read.
	resendRaces = 3
)

// VerificationService owns the per-email code state machine:
//
//	NoChallenge -> Pending -> {Verified | Exhausted | Expired}
//
// Issue re-enters Pending from any state. Every transition out of Pending is
// a conditional update evaluated by the store.
type VerificationService struct {
	Store    store.Store
	Notifier notify.Notifier
	Activity ActivityRecorder
	Now      func() time.Time

	CodeTTL        time.Duration
	ResendCooldown time.Duration // zero uses DefaultResendCooldown, negative disables
	MaxResends     int
	MaxAttempts    int
	CodeLength     int

	// Retention is how long used or expired challenges are kept before
	// PurgeExpired removes them.
	Retention time.Duration
}

func (s *VerificationService) codeTTL() time.Duration {
	if s.CodeTTL <= 0 {
		return DefaultCodeTTL
	}
	return s.CodeTTL
}

func (s *VerificationService) cooldown() time.Duration {
	if s.ResendCooldown < 0 {
		return 0
	}
	if s.ResendCooldown == 0 {
		return DefaultResendCooldown
	}
	return s.ResendCooldown
}

func (s *VerificationService) maxResends() int {
	if s.MaxResends <= 0 {
		return DefaultMaxResends
	}
	return s.MaxResends
}

func (s *VerificationService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return DefaultMaxVerifyAttempt
	}
	return s.MaxAttempts
}

func (s *VerificationService) codeLength() int {
	if s.CodeLength <= 0 {
		return DefaultCodeLength
	}
	return s.CodeLength
}

// NormalizeEmail trims and lower-cases a bare address and rejects anything
// that is not one.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > 254 {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Issue starts a fresh challenge for email, replacing any previous one, and
// sends the code. A delivery failure is reported as ErrNotification; the
// challenge stays in place so the guest can ask for a resend.
func (s *VerificationService) Issue(ctx context.Context, email, name string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name too long", ErrValidation)
	}

	code, err := cryptox.GenerateNumericCode(s.codeLength())
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	now := clock(s.Now)
	c := domain.VerificationChallenge{
		Email:     email,
		CodeHash:  cryptox.FingerprintToken(code),
		Name:      name,
		ExpiresAt: now.Add(s.codeTTL()),
		CreatedAt: now,
	}
	if err := s.Store.Challenges().UpsertChallenge(ctx, c); err != nil {
		return storeErr("upsert challenge", err)
	}

	if err := s.send(ctx, email, name, code); err != nil {
		return err
	}

	recordActivity(ctx, s.Activity, domain.ActivityEvent{
		Kind:      domain.EventCodeSent,
		Detail:    map[string]any{"email": email, "expires_at": c.ExpiresAt},
		CreatedAt: now,
	})
	return nil
}

// Resend rotates the code of a pending challenge. The cooldown and the cap
// are enforced by a single conditional update so concurrent resends cannot
// both pass.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	for range resendRaces {
		now := clock(s.Now)

		current, err := s.Store.Challenges().GetChallenge(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoPendingChallenge
		}
		if err != nil {
			return storeErr("get challenge", err)
		}
		if err := s.classifyResend(current, now); err != nil {
			return err
		}

		code, err := cryptox.GenerateNumericCode(s.codeLength())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}

		ok, err := s.Store.Challenges().ResendChallenge(ctx, store.ResendChallengeParams{
			Email:          email,
			CodeHash:       cryptox.FingerprintToken(code),
			Now:            now,
			ExpiresAt:      now.Add(s.codeTTL()),
			CooldownCutoff: now.Add(-s.cooldown()),
			MaxResends:     s.maxResends(),
		})
		if err != nil {
			return storeErr("resend challenge", err)
		}
		if !ok {
			// Lost to a concurrent write; re-read and classify again.
			continue
		}

		if err := s.send(ctx, email, current.Name, code); err != nil {
			return err
		}

		recordActivity(ctx, s.Activity, domain.ActivityEvent{
			Kind:      domain.EventCodeResent,
			Detail:    map[string]any{"email": email, "resend_count": current.ResendCount + 1},
			CreatedAt: now,
		})
		return nil
	}

	return &RateLimitedError{RetryAt: clock(s.Now).Add(s.cooldown())}
}

// classifyResend reports why c cannot be resent at now, or nil if it can.
// The cooldown is checked before the cap.
func (s *VerificationService) classifyResend(c domain.VerificationChallenge, now time.Time) error {
	if !c.Pending(now) {
		return ErrNoPendingChallenge
	}
	if c.LastResentAt != nil {
		retryAt := c.LastResentAt.Add(s.cooldown())
		if retryAt.After(now) {
			return &RateLimitedError{RetryAt: retryAt}
		}
	}
	if c.ResendCount >= s.maxResends() {
		return ErrTooManyResends
	}
	return nil
}

// Verify checks code against the pending challenge for email and, on a
// match, consumes it and returns the name given at issue time.
func (s *VerificationService) Verify(ctx context.Context, email, code string) (string, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	code = strings.Join(strings.Fields(code), "")
	if !s.wellFormedCode(code) {
		return "", ErrInvalidCode
	}

	log := slogx.FromContext(ctx)
	now := clock(s.Now)

	c, err := s.Store.Challenges().GetChallenge(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoValidChallenge
	}
	if err != nil {
		return "", storeErr("get challenge", err)
	}
	if !c.Pending(now) {
		return "", ErrNoValidChallenge
	}

	// An exhausted challenge stays locked even for the right code.
	if c.Attempts >= s.maxAttempts() {
		s.recordFailure(ctx, email, "max_attempts", 0, now)
		return "", ErrMaxAttemptsExceeded
	}

	if !cryptox.EqualFingerprint(code, c.CodeHash) {
		attempts, err := s.Store.Challenges().IncrementChallengeAttempts(ctx, email, c.CodeHash)
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNoValidChallenge
		}
		if err != nil {
			return "", storeErr("increment attempts", err)
		}

		remaining := max(s.maxAttempts()-attempts, 0)
		log.Info("verification code mismatch",
			slog.String("email", email),
			slog.Int("attempts_remaining", remaining),
		)
		s.recordFailure(ctx, email, "wrong_code", remaining, now)
		return "", &WrongCodeError{Remaining: remaining}
	}

	ok, err := s.Store.Challenges().ConsumeChallenge(ctx, store.ConsumeChallengeParams{
		Email:       email,
		CodeHash:    c.CodeHash,
		Now:         now,
		MaxAttempts: s.maxAttempts(),
	})
	if err != nil {
		return "", storeErr("consume challenge", err)
	}
	if !ok {
		return "", ErrNoValidChallenge
	}
	return c.Name, nil
}

func (s *VerificationService) wellFormedCode(code string) bool {
	if len(code) != s.codeLength() {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func (s *VerificationService) recordFailure(ctx context.Context, email, reason string, remaining int, now time.Time) {
	recordActivity(ctx, s.Activity, domain.ActivityEvent{
		Kind: domain.EventAuthFail,
		Detail: map[string]any{
			"email":              email,
			"reason":             reason,
			"attempts_remaining": remaining,
		},
		CreatedAt: now,
	})
}

func (s *VerificationService) send(ctx context.Context, email, name, code string) error {
	err := s.Notifier.SendCode(ctx, notify.Message{
		Email:     email,
		Name:      name,
		Code:      code,
		ExpiresIn: s.codeTTL(),
	})
	if err != nil {
		slogx.FromContext(ctx).Error("failed to send verification code",
			slog.String("email", email),
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}
	return nil
}

// PurgeExpired deletes used or expired challenges older than the retention
// window. Pending challenges are never removed.
func (s *VerificationService) PurgeExpired(ctx context.Context) (int64, error) {
	retention := s.Retention
	if retention <= 0 {
		retention = defaultChallengeRetention
	}
	now := clock(s.Now)

	n, err := s.Store.Challenges().DeleteRetiredChallenges(ctx, now, now.Add(-retention))
	if err != nil {
		return 0, storeErr("purge challenges", err)
	}
	return n, nil
}
