package sqlite

import (
	"context"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, device_id, access_hash, refresh_hash, scopes, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.DeviceID, s.AccessHash, s.RefreshHash,
		joinScopes(s.Scopes), s.ExpiresAt, now, now,
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, device_id, access_hash, refresh_hash, scopes, expires_at, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	var (
		s      domain.Session
		scopes string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceID, &s.AccessHash,
		&s.RefreshHash, &scopes, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.Scopes = splitScopes(scopes)
	return s, nil
}

// RotateSession is the compare-and-swap at the heart of refresh
// rotation. The WHERE clause pins the old refresh hash so concurrent
// refreshes of the same session produce exactly one winner.
func (r *sessionsRepo) RotateSession(ctx context.Context, id, oldRefreshHash, newAccessHash, newRefreshHash string, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET access_hash = ?, refresh_hash = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND refresh_hash = ?`,
		newAccessHash, newRefreshHash, expiresAt, time.Now().UTC(),
		id, oldRefreshHash,
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

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
