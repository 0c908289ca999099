package domain

import (
	"math"
	"time"
)

// GuestAuthorization is the network access grant for one device of one
// account. Rows are never deleted; expiry is the only termination.
type GuestAuthorization struct {
	ID           string // ULID
	MACAddress   string // aa:bb:cc:dd:ee:ff
	OwnerUserID  string
	IPAddress    string
	DeviceInfo   string
	Nickname     string
	AuthorizedAt time.Time
	ExpiresAt    time.Time
	LastSeen     time.Time
	AuthCount    int
}

// IsExpired reports whether the grant boundary has been reached.
func (g GuestAuthorization) IsExpired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}

// MinutesUntilExpiry rounds the remaining grant up to whole minutes, the unit
// the network controller works in. Expired grants yield 0.
func (g GuestAuthorization) MinutesUntilExpiry(now time.Time) int {
	d := g.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
