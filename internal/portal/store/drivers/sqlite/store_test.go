package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
	"github.com/aussiebroadwan/portal/internal/portal/store/drivers/sqlite"
	"github.com/aussiebroadwan/portal/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s store.Store, email string) domain.User {
	t.Helper()
	now := time.Now()
	u := domain.User{ID: idx.New().String(), Email: email, Role: domain.RoleGuest, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestChallengeUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.UnixMilli(1_700_000_000_000).UTC()

	first := domain.VerificationChallenge{
		Email: "a@example.com", CodeHash: "h1", Name: "A", ExpiresAt: now.Add(10 * time.Minute),
		Attempts: 3, ResendCount: 2, LastResentAt: &now, CreatedAt: now,
	}
	require.NoError(t, s.Challenges().UpsertChallenge(ctx, first))

	second := domain.VerificationChallenge{
		Email: "a@example.com", CodeHash: "h2", Name: "A2", ExpiresAt: now.Add(20 * time.Minute), CreatedAt: now,
	}
	require.NoError(t, s.Challenges().UpsertChallenge(ctx, second))

	got, err := s.Challenges().GetChallenge(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "h2", got.CodeHash)
	require.Equal(t, "A2", got.Name)
	require.Zero(t, got.Attempts)
	require.Zero(t, got.ResendCount)
	require.Nil(t, got.LastResentAt)
	require.True(t, got.ExpiresAt.Equal(second.ExpiresAt))

	_, err = s.Challenges().GetChallenge(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestChallengeResendConditions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.UnixMilli(1_700_000_000_000).UTC()
	repo := s.Challenges()

	require.NoError(t, repo.UpsertChallenge(ctx, domain.VerificationChallenge{
		Email: "a@example.com", CodeHash: "h1", ExpiresAt: now.Add(10 * time.Minute), Attempts: 4, CreatedAt: now,
	}))

	params := func(at time.Time, hash string) store.ResendChallengeParams {
		return store.ResendChallengeParams{
			Email: "a@example.com", CodeHash: hash, Now: at, ExpiresAt: at.Add(10 * time.Minute),
			CooldownCutoff: at.Add(-30 * time.Second), MaxResends: 2,
		}
	}

	ok, err := repo.ResendChallenge(ctx, params(now, "h2"))
	require.NoError(t, err)
	require.True(t, ok)

	c, err := repo.GetChallenge(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, "h2", c.CodeHash)
	require.Zero(t, c.Attempts)
	require.Equal(t, 1, c.ResendCount)
	require.NotNil(t, c.LastResentAt)

	// Inside the cooldown.
	ok, err = repo.ResendChallenge(ctx, params(now.Add(10*time.Second), "h3"))
	require.NoError(t, err)
	require.False(t, ok)

	// Exactly at the cooldown boundary.
	ok, err = repo.ResendChallenge(ctx, params(now.Add(30*time.Second), "h3"))
	require.NoError(t, err)
	require.True(t, ok)

	// Cap reached.
	ok, err = repo.ResendChallenge(ctx, params(now.Add(5*time.Minute), "h4"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChallengeConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.UnixMilli(1_700_000_000_000).UTC()
	repo := s.Challenges()

	require.NoError(t, repo.UpsertChallenge(ctx, domain.VerificationChallenge{
		Email: "a@example.com", CodeHash: "h1", ExpiresAt: now.Add(time.Minute), CreatedAt: now,
	}))

	p := store.ConsumeChallengeParams{Email: "a@example.com", CodeHash: "h1", Now: now, MaxAttempts: 5}

	ok, err := repo.ConsumeChallenge(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ConsumeChallenge(ctx, p)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = repo.IncrementChallengeAttempts(ctx, "a@example.com", "h1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestChallengeIncrementAndAttemptGuard(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.UnixMilli(1_700_000_000_000).UTC()
	repo := s.Challenges()

	require.NoError(t, repo.UpsertChallenge(ctx, domain.VerificationChallenge{
		Email: "a@example.com", CodeHash: "h1", ExpiresAt: now.Add(time.Minute), CreatedAt: now,
	}))

	for want := 1; want <= 2; want++ {
		n, err := repo.IncrementChallengeAttempts(ctx, "a@example.com", "h1")
		require.NoError(t, err)
		require.Equal(t, want, n)
	}

	ok, err := repo.ConsumeChallenge(ctx, store.ConsumeChallengeParams{
		Email: "a@example.com", CodeHash: "h1", Now: now, MaxAttempts: 2,
	})
	require.NoError(t, err)
	require.False(t, ok, "attempt budget spent")
}

func TestDeleteRetiredChallenges(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.UnixMilli(1_700_000_000_000).UTC()
	repo := s.Challenges()

	for email, c := range map[string]domain.VerificationChallenge{
		"old-expired@example.com": {ExpiresAt: now.Add(-48 * time.Hour)},
		"old-used@example.com":    {ExpiresAt: now.Add(-25 * time.Hour), Used: true},
		"recent@example.com":      {ExpiresAt: now.Add(-time.Hour)},
		"pending@example.com":     {ExpiresAt: now.Add(time.Minute)},
	} {
		c.Email, c.CodeHash, c.CreatedAt = email, "h", now
		require.NoError(t, repo.UpsertChallenge(ctx, c))
	}

	n, err := repo.DeleteRetiredChallenges(ctx, now, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	_, err = repo.GetChallenge(ctx, "pending@example.com")
	require.NoError(t, err)
	_, err = repo.GetChallenge(ctx, "recent@example.com")
	require.NoError(t, err)
}

func TestGuestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	owner := seedUser(t, s, "owner@example.com")
	now := time.UnixMilli(1_700_000_000_000).UTC()
	repo := s.Guests()

	g := domain.GuestAuthorization{
		ID: idx.New().String(), MACAddress: "aa:bb:cc:dd:ee:ff", OwnerUserID: owner.ID,
		AuthorizedAt: now, ExpiresAt: now.Add(-48 * time.Hour), LastSeen: now, AuthCount: 1,
	}
	require.NoError(t, repo.CreateGuest(ctx, g))

	dup := g
	dup.ID = idx.New().String()
	require.ErrorIs(t, repo.CreateGuest(ctx, dup), store.ErrAlreadyExists)

	t.Run("extend from the past starts at now", func(t *testing.T) {
		got, err := repo.ExtendGuest(ctx, g.ID, now, 5*24*time.Hour)
		require.NoError(t, err)
		require.True(t, got.ExpiresAt.Equal(now.Add(5*24*time.Hour)))
	})

	t.Run("extend from the future stacks", func(t *testing.T) {
		got, err := repo.ExtendGuest(ctx, g.ID, now, 24*time.Hour)
		require.NoError(t, err)
		require.True(t, got.ExpiresAt.Equal(now.Add(6*24*time.Hour)))
	})

	t.Run("renew bumps auth count", func(t *testing.T) {
		got, err := repo.RenewGuest(ctx, store.RenewGuestParams{
			ID: g.ID, IPAddress: "10.0.0.9", DeviceInfo: "phone", LastSeen: now, ExpiresAt: now.Add(time.Hour),
		})
		require.NoError(t, err)
		require.Equal(t, 2, got.AuthCount)
		require.Equal(t, "10.0.0.9", got.IPAddress)
	})

	t.Run("revoke sets expiry to now", func(t *testing.T) {
		got, err := repo.RevokeGuest(ctx, g.ID, now)
		require.NoError(t, err)
		require.True(t, got.ExpiresAt.Equal(now))
		require.True(t, got.IsExpired(now))

		active, err := repo.ListActiveGuests(ctx, now)
		require.NoError(t, err)
		require.Empty(t, active)
	})

	t.Run("rename is owner scoped", func(t *testing.T) {
		_, err := repo.RenameGuest(ctx, "someone-else", g.ID, "laptop")
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := repo.RenameGuest(ctx, owner.ID, g.ID, "laptop")
		require.NoError(t, err)
		require.Equal(t, "laptop", got.Nickname)
	})

	t.Run("missing ids are not found", func(t *testing.T) {
		_, err := repo.ExtendGuest(ctx, "missing", now, time.Hour)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = repo.RevokeGuest(ctx, "missing", now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTouchGuestsByMACOnlyTouchesActive(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.UnixMilli(1_700_000_000_000).UTC()
	a := seedUser(t, s, "a@example.com")
	b := seedUser(t, s, "b@example.com")

	for owner, exp := range map[string]time.Time{a.ID: now.Add(time.Hour), b.ID: now.Add(-time.Hour)} {
		require.NoError(t, s.Guests().CreateGuest(ctx, domain.GuestAuthorization{
			ID: idx.New().String(), MACAddress: "aa:bb:cc:dd:ee:ff", OwnerUserID: owner,
			IPAddress: "10.0.0.1", AuthorizedAt: now, ExpiresAt: exp, LastSeen: now.Add(-time.Hour), AuthCount: 1,
		}))
	}

	n, err := s.Guests().TouchGuestsByMAC(ctx, "aa:bb:cc:dd:ee:ff", "10.0.0.2", now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.Guests().GetGuestByOwnerAndMAC(ctx, a.ID, "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2", got.IPAddress)
	require.True(t, got.LastSeen.Equal(now))
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		now := time.Now()
		require.NoError(t, tx.Users().CreateUser(ctx, domain.User{
			ID: idx.New().String(), Email: "tx@example.com", Role: domain.RoleGuest, CreatedAt: now, UpdatedAt: now,
		}))
		return store.ErrAlreadyExists
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = s.Users().GetUserByEmail(ctx, "tx@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestActivityRoundTripToleratesOddDetail(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.UnixMilli(1_700_000_000_000).UTC()

	require.NoError(t, s.Activity().AppendEvent(ctx, domain.ActivityEvent{
		ID: idx.New().String(), Kind: domain.EventCodeSent, CreatedAt: base,
	}))
	require.NoError(t, s.Activity().AppendEvent(ctx, domain.ActivityEvent{
		ID: idx.New().String(), Kind: domain.EventAuthSuccess, MACAddress: "aa:bb:cc:dd:ee:ff",
		Detail: map[string]any{"returning": true, "future_field": []int{1}}, CreatedAt: base.Add(time.Second),
	}))

	events, err := s.Activity().ListRecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventAuthSuccess, events[0].Kind)
	require.Equal(t, true, events[0].Detail["returning"])
	require.Empty(t, events[1].Detail)
}

func TestAdminUsers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now()

	n, err := s.Users().CountAdmins(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	admin := domain.User{ID: idx.New().String(), Email: "ops@example.com", Role: domain.RoleAdmin, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users().CreateUser(ctx, admin))
	require.ErrorIs(t, s.Users().CreateUser(ctx, admin), store.ErrAlreadyExists)

	require.ErrorIs(t, s.Users().EnableTwoFactor(ctx, admin.ID), store.ErrNotFound, "no secret yet")
	require.NoError(t, s.Users().SetTOTPSecret(ctx, admin.ID, "JBSWY3DPEHPK3PXP"))
	require.NoError(t, s.Users().EnableTwoFactor(ctx, admin.ID))

	got, err := s.Users().GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	require.True(t, got.TwoFactorEnabled)

	n, err = s.Users().CountAdmins(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
