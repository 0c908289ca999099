package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session lifetimes. Guests only need long enough to manage their devices
// right after verifying, admins get a working shift.
const (
	DefaultGuestSessionTTL = 30 * time.Minute
	DefaultAdminSessionTTL = 8 * time.Hour
)

// Roles carried in the "role" claim.
const (
	RoleGuest = "guest"
	RoleAdmin = "admin"
)

// Authentication Methods Reference values.
const (
	AMRCode     = "otp" // email verification code
	AMRPassword = "pwd"
	AMRMFA      = "mfa"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrInvalidSig   = errors.New("jwtx: invalid signature")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Claims are the session claims for both guests and admins.
type Claims struct {
	jwt.RegisteredClaims

	Role  string   `json:"role"`
	Email string   `json:"email,omitempty"`
	AMR   []string `json:"amr,omitempty"`
}

// NewSessionClaims builds claims for subject valid for ttl from now.
func NewSessionClaims(subject, role, email string, amr []string, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Role:  role,
		Email: email,
		AMR:   amr,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer when one is expected.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiryAt checks exp and nbf against now with a small leeway for
// clock skew.
func (c *Claims) ValidateExpiryAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}

// Validate checks the claims carry what every session needs.
func (c *Claims) Validate() error {
	if c.Subject == "" {
		return ErrInvalidClaim
	}
	switch c.Role {
	case RoleGuest, RoleAdmin:
		return nil
	default:
		return ErrInvalidClaim
	}
}
