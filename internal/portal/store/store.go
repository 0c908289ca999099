package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Sub-repositories are exposed as
// methods so a Tx-scoped Store can hand out the same repos bound to the
// transaction.
type Store interface {
	Challenges() Challenges
	Guests() Guests
	Users() Users
	Activity() Activity

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// ResendChallengeParams drives the conditional resend update. The row only
// changes when it is unused, unexpired at Now, has ResendCount < MaxResends
// and was last resent at or before CooldownCutoff (or never).
type ResendChallengeParams struct {
	Email          string
	CodeHash       string
	Now            time.Time
	ExpiresAt      time.Time
	CooldownCutoff time.Time
	MaxResends     int
}

// ConsumeChallengeParams drives the used=0 -> used=1 compare-and-set.
type ConsumeChallengeParams struct {
	Email       string
	CodeHash    string
	Now         time.Time
	MaxAttempts int
}

type Challenges interface {
	// UpsertChallenge makes c the only challenge for c.Email, replacing any
	// previous row and resetting its counters to the values in c.
	UpsertChallenge(ctx context.Context, c domain.VerificationChallenge) error

	// GetChallenge returns the row for email in whatever state it is in.
	GetChallenge(ctx context.Context, email string) (domain.VerificationChallenge, error)

	// ResendChallenge applies the resend in a single conditional UPDATE and
	// reports whether the row changed.
	ResendChallenge(ctx context.Context, p ResendChallengeParams) (bool, error)

	// IncrementChallengeAttempts bumps attempts on the unused challenge for
	// email carrying codeHash and returns the new count. ErrNotFound when the
	// challenge was consumed or replaced meanwhile.
	IncrementChallengeAttempts(ctx context.Context, email, codeHash string) (int, error)

	// ConsumeChallenge flips used to 1 if the challenge is still valid and
	// reports whether this call won.
	ConsumeChallenge(ctx context.Context, p ConsumeChallengeParams) (bool, error)

	// DeleteRetiredChallenges removes used or expired challenges whose
	// expiry is before cutoff. Pending challenges are never touched.
	DeleteRetiredChallenges(ctx context.Context, now, cutoff time.Time) (int64, error)
}

// RenewGuestParams re-authorises an existing grant.
type RenewGuestParams struct {
	ID         string
	IPAddress  string
	DeviceInfo string
	LastSeen   time.Time
	ExpiresAt  time.Time
}

type Guests interface {
	GetGuestByID(ctx context.Context, id string) (domain.GuestAuthorization, error)
	GetGuestByOwnerAndMAC(ctx context.Context, ownerUserID, mac string) (domain.GuestAuthorization, error)

	// CreateGuest inserts g. ErrAlreadyExists when (owner, mac) is taken.
	CreateGuest(ctx context.Context, g domain.GuestAuthorization) error

	// RenewGuest updates the observed fields, sets the new expiry and bumps
	// auth_count, returning the updated row.
	RenewGuest(ctx context.Context, p RenewGuestParams) (domain.GuestAuthorization, error)

	// ExtendGuest sets expires_at = max(expires_at, now) + by in one statement.
	ExtendGuest(ctx context.Context, id string, now time.Time, by time.Duration) (domain.GuestAuthorization, error)

	// RevokeGuest sets expires_at = now.
	RevokeGuest(ctx context.Context, id string, now time.Time) (domain.GuestAuthorization, error)

	// RenameGuest sets the nickname of a grant owned by ownerUserID.
	RenameGuest(ctx context.Context, ownerUserID, id, nickname string) (domain.GuestAuthorization, error)

	// TouchGuestsByMAC records a sighting on every active grant for mac and
	// returns how many rows changed.
	TouchGuestsByMAC(ctx context.Context, mac, ip string, seen time.Time) (int64, error)

	ListGuestsByOwner(ctx context.Context, ownerUserID string) ([]domain.GuestAuthorization, error)
	ListActiveGuests(ctx context.Context, now time.Time) ([]domain.GuestAuthorization, error)

	// ListGuests returns the most recently authorised grants, newest first.
	ListGuests(ctx context.Context, limit int) ([]domain.GuestAuthorization, error)
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u. ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	UpdateDisplayName(ctx context.Context, userID, name string) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// SetTOTPSecret stores a pending secret without enabling 2FA.
	SetTOTPSecret(ctx context.Context, userID, secret string) error
	EnableTwoFactor(ctx context.Context, userID string) error

	CountAdmins(ctx context.Context) (int, error)
}

type Activity interface {
	AppendEvent(ctx context.Context, e domain.ActivityEvent) error

	// ListRecentEvents returns events newest first.
	ListRecentEvents(ctx context.Context, limit int) ([]domain.ActivityEvent, error)
}
