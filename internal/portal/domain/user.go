package domain

import "time"

type Role string

const (
	RoleGuest Role = "guest"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleGuest || r == RoleAdmin
}

type User struct {
	ID               string
	Email            string
	DisplayName      string
	Role             Role
	TwoFactorEnabled bool
	PasswordHash     string // argon2 encoded, admins only
	TOTPSecret       string // base32, set once enrolment starts
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TOTPEnrollment is what an admin needs to add the portal to an
// authenticator app.
type TOTPEnrollment struct {
	Secret  string
	URL     string
	Issuer  string
	Account string
}
