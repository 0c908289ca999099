package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, display_name, role, two_factor_enabled, password_hash, totp_secret,
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u                    domain.User
		role                 string
		twoFactor            int
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &twoFactor, &u.PasswordHash, &u.TOTPSecret,
		&createdAt, &updatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.TwoFactorEnabled = twoFactor != 0
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, string(u.Role), boolToInt(u.TwoFactorEnabled), u.PasswordHash, u.TOTPSecret,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

// update runs a single-row UPDATE and maps "no row" to ErrNotFound.
func (r *usersRepo) update(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) UpdateDisplayName(ctx context.Context, userID, name string) error {
	return r.update(ctx, `UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?`,
		name, toMillis(time.Now()), userID)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return r.update(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(time.Now()), userID)
}

func (r *usersRepo) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	return r.update(ctx, `UPDATE users SET totp_secret = ?, two_factor_enabled = 0, updated_at = ? WHERE id = ?`,
		secret, toMillis(time.Now()), userID)
}

func (r *usersRepo) EnableTwoFactor(ctx context.Context, userID string) error {
	return r.update(ctx, `UPDATE users SET two_factor_enabled = 1, updated_at = ? WHERE id = ? AND totp_secret != ''`,
		toMillis(time.Now()), userID)
}

func (r *usersRepo) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&n)
	return n, err
}
