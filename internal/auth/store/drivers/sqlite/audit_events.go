package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
)

type auditEventsRepo struct {
	db dbtx
}

const auditColumns = `id, action,
	user_id_ct, user_id_iv, user_id_tag,
	username_ct, username_iv, username_tag,
	metadata_ct, metadata_iv, metadata_tag,
	device_hash, entity_type, entity_id, platform, success, reason,
	occurred_at, created_at`

func (r *auditEventsRepo) CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action),
		e.UserID.Ciphertext, e.UserID.IV, e.UserID.Tag,
		e.Username.Ciphertext, e.Username.IV, e.Username.Tag,
		e.Metadata.Ciphertext, e.Metadata.IV, e.Metadata.Tag,
		e.DeviceHash, e.EntityType, e.EntityID, e.Platform, e.Success, e.Reason,
		e.OccurredAt, time.Now().UTC(),
	)
	return mapConstraint(err)
}

func (r *auditEventsRepo) ListAuditEvents(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(f.Action))
	}
	if f.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, f.Platform)
	}
	if f.Success != nil {
		where = append(where, "success = ?")
		args = append(args, *f.Success)
	}
	if !f.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		where = append(where, "occurred_at <= ?")
		args = append(args, f.Until)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at DESC, id DESC"

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e      domain.AuditEvent
			action string
		)
		err := rows.Scan(&e.ID, &action,
			&e.UserID.Ciphertext, &e.UserID.IV, &e.UserID.Tag,
			&e.Username.Ciphertext, &e.Username.IV, &e.Username.Tag,
			&e.Metadata.Ciphertext, &e.Metadata.IV, &e.Metadata.Tag,
			&e.DeviceHash, &e.EntityType, &e.EntityID, &e.Platform,
			&e.Success, &e.Reason, &e.OccurredAt, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditEventsRepo) AuditStats(ctx context.Context, since time.Time) ([]domain.ActionStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action, platform,
		       COUNT(*) AS total,
		       SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) AS failures
		FROM audit_events
		WHERE occurred_at >= ?
		GROUP BY action, platform
		ORDER BY action, platform`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActionStats
	for rows.Next() {
		var (
			s      domain.ActionStats
			action string
		)
		if err := rows.Scan(&action, &s.Platform, &s.Count, &s.Failures); err != nil {
			return nil, err
		}
		s.Action = domain.AuditAction(action)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *auditEventsRepo) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
