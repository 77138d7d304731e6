package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	// Last request wins for a known device: the upsert replaces any
	// earlier challenge for the same hint in one atomic statement, so
	// racing issues can never leave two live challenges per device.
	// Anonymous challenges (NULL device_id) never conflict.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO challenges (value, device_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id) WHERE device_id IS NOT NULL
		DO UPDATE SET value      = excluded.value,
		              created_at = excluded.created_at,
		              expires_at = excluded.expires_at`,
		c.Value, mapEmptyNull(c.DeviceID), c.CreatedAt, c.ExpiresAt,
	)
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, value string) (domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT value, device_id, created_at, expires_at
		FROM challenges WHERE value = ?`, value)

	var (
		c        domain.Challenge
		deviceID sql.NullString
	)
	if err := row.Scan(&c.Value, &deviceID, &c.CreatedAt, &c.ExpiresAt); err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	if deviceID.Valid {
		c.DeviceID = deviceID.String
	}
	return c, nil
}

// ConsumeChallenge deletes the row only while it is still live. The
// single conditional DELETE is what makes challenges single use under
// concurrent verification attempts.
func (r *challengesRepo) ConsumeChallenge(ctx context.Context, value string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE value = ? AND expires_at > ?`,
		value, now,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func mapEmptyNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
