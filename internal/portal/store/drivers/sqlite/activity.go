package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
)

type activityRepo struct {
	db dbtx
}

func (r *activityRepo) AppendEvent(ctx context.Context, e domain.ActivityEvent) error {
	detail := []byte("{}")
	if len(e.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(e.Detail); err != nil {
			return err
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_events (id, kind, user_id, guest_id, mac_address, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), toNullString(e.UserID), toNullString(e.GuestID), toNullString(e.MACAddress),
		string(detail), toMillis(e.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *activityRepo) ListRecentEvents(ctx context.Context, limit int) ([]domain.ActivityEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, user_id, guest_id, mac_address, detail, created_at
		FROM activity_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivityEvent
	for rows.Next() {
		var (
			e                    domain.ActivityEvent
			kind, detail         string
			userID, guestID, mac sql.NullString
			createdAt            int64
		)
		if err := rows.Scan(&e.ID, &kind, &userID, &guestID, &mac, &detail, &createdAt); err != nil {
			return nil, err
		}
		e.Kind = domain.EventKind(kind)
		e.UserID = userID.String
		e.GuestID = guestID.String
		e.MACAddress = mac.String
		e.CreatedAt = fromMillis(createdAt)

		// Detail written by older or newer versions may not decode into the
		// shape we expect; an unreadable payload is dropped rather than
		// failing the listing.
		if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
			e.Detail = nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
