package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
)

type guestsRepo struct {
	db dbtx
}

const guestColumns = `id, mac_address, owner_user_id, ip_address, device_info, nickname,
	authorized_at, expires_at, last_seen, auth_count`

func scanGuest(row interface{ Scan(...any) error }) (domain.GuestAuthorization, error) {
	var (
		g                                 domain.GuestAuthorization
		authorizedAt, expiresAt, lastSeen int64
	)
	err := row.Scan(&g.ID, &g.MACAddress, &g.OwnerUserID, &g.IPAddress, &g.DeviceInfo, &g.Nickname,
		&authorizedAt, &expiresAt, &lastSeen, &g.AuthCount)
	if err != nil {
		return domain.GuestAuthorization{}, err
	}
	g.AuthorizedAt = fromMillis(authorizedAt)
	g.ExpiresAt = fromMillis(expiresAt)
	g.LastSeen = fromMillis(lastSeen)
	return g, nil
}

func (r *guestsRepo) queryOne(ctx context.Context, query string, args ...any) (domain.GuestAuthorization, error) {
	g, err := scanGuest(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.GuestAuthorization{}, mapNotFound(err)
	}
	return g, nil
}

func (r *guestsRepo) queryMany(ctx context.Context, query string, args ...any) ([]domain.GuestAuthorization, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GuestAuthorization
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *guestsRepo) GetGuestByID(ctx context.Context, id string) (domain.GuestAuthorization, error) {
	return r.queryOne(ctx, `SELECT `+guestColumns+` FROM guest_authorizations WHERE id = ?`, id)
}

func (r *guestsRepo) GetGuestByOwnerAndMAC(ctx context.Context, ownerUserID, mac string) (domain.GuestAuthorization, error) {
	return r.queryOne(ctx,
		`SELECT `+guestColumns+` FROM guest_authorizations WHERE owner_user_id = ? AND mac_address = ?`,
		ownerUserID, mac)
}

func (r *guestsRepo) CreateGuest(ctx context.Context, g domain.GuestAuthorization) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guest_authorizations (`+guestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.MACAddress, g.OwnerUserID, g.IPAddress, g.DeviceInfo, g.Nickname,
		toMillis(g.AuthorizedAt), toMillis(g.ExpiresAt), toMillis(g.LastSeen), g.AuthCount,
	)
	return mapConstraint(err)
}

func (r *guestsRepo) RenewGuest(ctx context.Context, p store.RenewGuestParams) (domain.GuestAuthorization, error) {
	return r.queryOne(ctx, `
		UPDATE guest_authorizations
		SET ip_address  = ?,
		    device_info = ?,
		    last_seen   = ?,
		    expires_at  = ?,
		    auth_count  = auth_count + 1
		WHERE id = ?
		RETURNING `+guestColumns,
		p.IPAddress, p.DeviceInfo, toMillis(p.LastSeen), toMillis(p.ExpiresAt), p.ID,
	)
}

func (r *guestsRepo) ExtendGuest(ctx context.Context, id string, now time.Time, by time.Duration) (domain.GuestAuthorization, error) {
	return r.queryOne(ctx, `
		UPDATE guest_authorizations
		SET expires_at = MAX(expires_at, ?) + ?
		WHERE id = ?
		RETURNING `+guestColumns,
		toMillis(now), by.Milliseconds(), id,
	)
}

func (r *guestsRepo) RevokeGuest(ctx context.Context, id string, now time.Time) (domain.GuestAuthorization, error) {
	return r.queryOne(ctx, `
		UPDATE guest_authorizations
		SET expires_at = ?
		WHERE id = ?
		RETURNING `+guestColumns,
		toMillis(now), id,
	)
}

func (r *guestsRepo) RenameGuest(ctx context.Context, ownerUserID, id, nickname string) (domain.GuestAuthorization, error) {
	return r.queryOne(ctx, `
		UPDATE guest_authorizations
		SET nickname = ?
		WHERE id = ? AND owner_user_id = ?
		RETURNING `+guestColumns,
		nickname, id, ownerUserID,
	)
}

func (r *guestsRepo) TouchGuestsByMAC(ctx context.Context, mac, ip string, seen time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE guest_authorizations
		SET last_seen  = ?,
		    ip_address = CASE WHEN ? = '' THEN ip_address ELSE ? END
		WHERE mac_address = ? AND expires_at > ?`,
		toMillis(seen), ip, ip, mac, toMillis(seen),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *guestsRepo) ListGuestsByOwner(ctx context.Context, ownerUserID string) ([]domain.GuestAuthorization, error) {
	return r.queryMany(ctx, `
		SELECT `+guestColumns+` FROM guest_authorizations
		WHERE owner_user_id = ?
		ORDER BY expires_at DESC, id`,
		ownerUserID)
}

func (r *guestsRepo) ListActiveGuests(ctx context.Context, now time.Time) ([]domain.GuestAuthorization, error) {
	return r.queryMany(ctx, `
		SELECT `+guestColumns+` FROM guest_authorizations
		WHERE expires_at > ?
		ORDER BY expires_at, id`,
		toMillis(now))
}

func (r *guestsRepo) ListGuests(ctx context.Context, limit int) ([]domain.GuestAuthorization, error) {
	return r.queryMany(ctx, `
		SELECT `+guestColumns+` FROM guest_authorizations
		ORDER BY last_seen DESC, id DESC
		LIMIT ?`,
		limit)
}
