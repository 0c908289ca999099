package domain

import "time"

// VerificationChallenge is the one outstanding code for an email address.
// Issuing a new code overwrites the row, so the email is the key.
type VerificationChallenge struct {
	Email        string // normalised: trimmed, lower-case
	CodeHash     string // SHA-256 fingerprint of the numeric code
	Name         string // display name claimed when the code was requested
	ExpiresAt    time.Time
	Attempts     int // failed verify calls since the code was (re)issued
	ResendCount  int // resends since the last issue
	LastResentAt *time.Time
	Used         bool
	CreatedAt    time.Time
}

// Pending reports whether the challenge can still be verified or resent.
func (c VerificationChallenge) Pending(now time.Time) bool {
	return !c.Used && c.ExpiresAt.After(now)
}
