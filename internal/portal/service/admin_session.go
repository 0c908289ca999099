package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/pkg/cryptox"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
	"github.com/aussiebroadwan/portal/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
)

// Session is a signed bearer token and what it was issued for.
type Session struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	Role      string
}

// AdminSessionService logs admins in and hands guests their short-lived
// device session after verification.
type AdminSessionService struct {
	Store    store.Store
	Signer   jwtx.Signer
	Activity ActivityRecorder
	Issuer   string // TOTP issuer shown in authenticator apps
	Now      func() time.Time

	SessionTTL      time.Duration
	GuestSessionTTL time.Duration
}

func (s *AdminSessionService) issuer() string {
	if s.Issuer == "" {
		return "Guest Portal"
	}
	return s.Issuer
}

// Login checks an admin's password, and their TOTP code once 2FA is on.
// Every failure is reported as ErrInvalidCredentials except the TOTP
// specific ones, which only surface after the password matched.
func (s *AdminSessionService) Login(ctx context.Context, email, password, code string) (Session, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	email, err := NormalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Session{}, storeErr("get user by email", err)
	}
	if err != nil || u.Role != domain.RoleAdmin || u.PasswordHash == "" {
		s.loginFailed(ctx, "", email, "unknown_admin", now)
		return Session{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("password verification failed", slog.String("user_id", u.ID), slog.Any("error", err))
		}
		s.loginFailed(ctx, u.ID, email, "bad_password", now)
		return Session{}, ErrInvalidCredentials
	}

	amr := []string{jwtx.AMRPassword}
	if u.TwoFactorEnabled {
		code = strings.TrimSpace(code)
		if code == "" {
			return Session{}, ErrTOTPRequired
		}
		if !validateTOTP(code, u.TOTPSecret, now) {
			s.loginFailed(ctx, u.ID, email, "bad_totp", now)
			return Session{}, ErrInvalidTOTPCode
		}
		amr = append(amr, jwtx.AMRMFA)
	}

	sess, err := s.sign(u, domain.RoleAdmin, amr, s.SessionTTL, jwtx.DefaultAdminSessionTTL, now)
	if err != nil {
		return Session{}, err
	}

	recordActivity(ctx, s.Activity, domain.ActivityEvent{
		Kind:      domain.EventAdminLogin,
		UserID:    u.ID,
		Detail:    map[string]any{"mfa": u.TwoFactorEnabled},
		CreatedAt: now,
	})
	l.Info("admin logged in", slog.String("user_id", u.ID))
	return sess, nil
}

// Logout records the end of an admin session. Tokens are stateless and
// simply run out.
func (s *AdminSessionService) Logout(ctx context.Context, userID string) {
	recordActivity(ctx, s.Activity, domain.ActivityEvent{
		Kind:      domain.EventAdminLogout,
		UserID:    userID,
		CreatedAt: clock(s.Now),
	})
}

// IssueGuestSession signs the token a verified guest uses to manage their
// own devices.
func (s *AdminSessionService) IssueGuestSession(u domain.User) (Session, error) {
	return s.sign(u, domain.RoleGuest, []string{jwtx.AMRCode}, s.GuestSessionTTL, jwtx.DefaultGuestSessionTTL, clock(s.Now))
}

func (s *AdminSessionService) sign(u domain.User, role domain.Role, amr []string, ttl, fallback time.Duration, now time.Time) (Session, error) {
	if ttl <= 0 {
		ttl = fallback
	}
	claims := jwtx.NewSessionClaims(u.ID, string(role), u.Email, amr, s.issuerClaim(), ttl, now)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{
		Token:     token,
		ExpiresAt: now.Add(ttl),
		UserID:    u.ID,
		Role:      string(role),
	}, nil
}

// issuerClaim is the iss the verifier expects, taken from the signer when
// it knows one.
func (s *AdminSessionService) issuerClaim() string {
	if k, ok := s.Signer.(interface{ Issuer() string }); ok {
		return k.Issuer()
	}
	return s.issuer()
}

// EnrollTOTP generates and stores a TOTP secret for an admin. 2FA stays off
// until EnableTOTP confirms a code from it.
func (s *AdminSessionService) EnrollTOTP(ctx context.Context, userID string) (domain.TOTPEnrollment, error) {
	u, err := s.admin(ctx, userID)
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}
	if u.TwoFactorEnabled {
		return domain.TOTPEnrollment{}, ErrTOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer(),
		AccountName: u.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	if err := s.Store.Users().SetTOTPSecret(ctx, u.ID, key.Secret()); err != nil {
		return domain.TOTPEnrollment{}, storeErr("store totp secret", err)
	}

	return domain.TOTPEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  key.Issuer(),
		Account: key.AccountName(),
	}, nil
}

// EnableTOTP turns 2FA on once code matches the enrolled secret.
func (s *AdminSessionService) EnableTOTP(ctx context.Context, userID, code string) error {
	u, err := s.admin(ctx, userID)
	if err != nil {
		return err
	}
	if u.TwoFactorEnabled {
		return ErrTOTPAlreadyEnabled
	}
	if u.TOTPSecret == "" {
		return ErrTOTPNotEnrolled
	}
	if !validateTOTP(strings.TrimSpace(code), u.TOTPSecret, clock(s.Now)) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().EnableTwoFactor(ctx, u.ID); err != nil {
		return storeErr("enable two factor", err)
	}
	slogx.FromContext(ctx).Info("admin enabled two factor", slog.String("user_id", u.ID))
	return nil
}

func (s *AdminSessionService) admin(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrRecordNotFound
	}
	if err != nil {
		return domain.User{}, storeErr("get user", err)
	}
	if u.Role != domain.RoleAdmin {
		return domain.User{}, ErrRecordNotFound
	}
	return u, nil
}

func (s *AdminSessionService) loginFailed(ctx context.Context, userID, email, reason string, now time.Time) {
	recordActivity(ctx, s.Activity, domain.ActivityEvent{
		Kind:      domain.EventAuthFail,
		UserID:    userID,
		Detail:    map[string]any{"email": email, "reason": reason, "surface": "admin"},
		CreatedAt: now,
	})
}

func validateTOTP(code, secret string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
