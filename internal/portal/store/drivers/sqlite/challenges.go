package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/portal/internal/portal/domain"
	"github.com/aussiebroadwan/portal/internal/portal/store"
)

type challengesRepo struct {
	db dbtx
}

const challengeColumns = `email, code_hash, name, expires_at, attempts, resend_count, last_resent_at, used, created_at`

func scanChallenge(row interface{ Scan(...any) error }) (domain.VerificationChallenge, error) {
	var (
		c                    domain.VerificationChallenge
		expiresAt, createdAt int64
		lastResentAt         sql.NullInt64
		used                 int
	)
	err := row.Scan(&c.Email, &c.CodeHash, &c.Name, &expiresAt, &c.Attempts, &c.ResendCount,
		&lastResentAt, &used, &createdAt)
	if err != nil {
		return domain.VerificationChallenge{}, err
	}
	c.ExpiresAt = fromMillis(expiresAt)
	c.LastResentAt = fromNullMillis(lastResentAt)
	c.Used = used != 0
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func (r *challengesRepo) UpsertChallenge(ctx context.Context, c domain.VerificationChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			code_hash      = excluded.code_hash,
			name           = excluded.name,
			expires_at     = excluded.expires_at,
			attempts       = excluded.attempts,
			resend_count   = excluded.resend_count,
			last_resent_at = excluded.last_resent_at,
			used           = excluded.used,
			created_at     = excluded.created_at`,
		c.Email, c.CodeHash, c.Name, toMillis(c.ExpiresAt), c.Attempts, c.ResendCount,
		toNullMillis(c.LastResentAt), boolToInt(c.Used), toMillis(c.CreatedAt),
	)
	return err
}

func (r *challengesRepo) GetChallenge(ctx context.Context, email string) (domain.VerificationChallenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM verification_challenges WHERE email = ?`, email)
	c, err := scanChallenge(row)
	if err != nil {
		return domain.VerificationChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) ResendChallenge(ctx context.Context, p store.ResendChallengeParams) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE verification_challenges
		SET code_hash      = ?,
		    attempts       = 0,
		    expires_at     = ?,
		    resend_count   = resend_count + 1,
		    last_resent_at = ?
		WHERE email = ?
		  AND used = 0
		  AND expires_at > ?
		  AND resend_count < ?
		  AND (last_resent_at IS NULL OR last_resent_at <= ?)`,
		p.CodeHash, toMillis(p.ExpiresAt), toMillis(p.Now),
		p.Email, toMillis(p.Now), p.MaxResends, toMillis(p.CooldownCutoff),
	)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, email, codeHash string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE verification_challenges
		SET attempts = attempts + 1
		WHERE email = ? AND code_hash = ? AND used = 0
		RETURNING attempts`,
		email, codeHash,
	).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *challengesRepo) ConsumeChallenge(ctx context.Context, p store.ConsumeChallengeParams) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE verification_challenges
		SET used = 1
		WHERE email = ?
		  AND code_hash = ?
		  AND used = 0
		  AND expires_at > ?
		  AND attempts < ?`,
		p.Email, p.CodeHash, toMillis(p.Now), p.MaxAttempts,
	)
	if err != nil {
		return false, err
	}
	return rowsAffected(res)
}

func (r *challengesRepo) DeleteRetiredChallenges(ctx context.Context, now, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM verification_challenges
		WHERE expires_at < ?
		  AND (used = 1 OR expires_at <= ?)`,
		toMillis(cutoff), toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
