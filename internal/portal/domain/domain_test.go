package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGuestExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	g := GuestAuthorization{ExpiresAt: now}
	require.True(t, g.IsExpired(now), "expiresAt == now reads as expired")
	require.Zero(t, g.MinutesUntilExpiry(now))

	g.ExpiresAt = now.Add(90 * time.Second)
	require.False(t, g.IsExpired(now))
	require.Equal(t, 2, g.MinutesUntilExpiry(now))
}

func TestChallengePending(t *testing.T) {
	now := time.Now()
	c := VerificationChallenge{ExpiresAt: now.Add(time.Minute)}
	require.True(t, c.Pending(now))

	c.Used = true
	require.False(t, c.Pending(now))

	c = VerificationChallenge{ExpiresAt: now}
	require.False(t, c.Pending(now))
}

func TestEventKinds(t *testing.T) {
	require.True(t, EventCodeResent.Valid())
	require.False(t, EventKind("login").Valid())
}
