package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs session claims.
type Signer interface {
	Sign(Claims) (string, error)
}

// Verifier validates a session token and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// SessionKeys signs and verifies session tokens with a single Ed25519 key.
// Sessions are short lived so there is no rotation; replacing the key file
// logs everybody out.
type SessionKeys struct {
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewSessionKeys wraps key for issuer.
func NewSessionKeys(key ed25519.PrivateKey, issuer string) (*SessionKeys, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 private key size")
	}
	return &SessionKeys{
		key:    key,
		pub:    key.Public().(ed25519.PublicKey),
		issuer: issuer,
		leeway: 30 * time.Second,
		now:    time.Now,
	}, nil
}

// Issuer returns the issuer stamped into tokens.
func (k *SessionKeys) Issuer() string { return k.issuer }

// Sign turns claims into a compact JWS.
func (k *SessionKeys) Sign(claims Claims) (string, error) {
	if err := claims.Validate(); err != nil {
		return "", err
	}
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return t.SignedString(k.key)
}

// Verify parses and validates token.
func (k *SessionKeys) Verify(token string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return k.pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, ErrInvalidSig
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(k.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiryAt(k.now(), k.leeway); err != nil {
		return Claims{}, err
	}
	if err := claims.Validate(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}
