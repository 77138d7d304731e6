package store

import (
	"context"
	"errors"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep
// concerns tidy and testable, and to stop callers from accidentally
// opening transactions within transactions.
type Store interface {
	Users() Users
	Challenges() Challenges
	Sessions() Sessions
	AuditEvents() AuditEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g.,
	// registration issuing its first session). The caller MUST call
	// Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	// A duplicate device_id maps to ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByDeviceID is the lookup used by the challenge-response flow.
	GetUserByDeviceID(ctx context.Context, deviceID string) (domain.User, error)

	// GetUserByUsername is used during hybrid login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// SetCredentials sets the username and password_hash (argon2) in one
	// statement. A duplicate username maps to ErrAlreadyExists.
	SetCredentials(ctx context.Context, userID, username, passwordHash string) error

	// TouchLastLogin bumps last_login_at.
	TouchLastLogin(ctx context.Context, userID string) error
}

type Challenges interface {
	// CreateChallenge inserts a challenge. When the device hint is
	// non-empty any prior challenge for that device is replaced.
	CreateChallenge(ctx context.Context, c domain.Challenge) error

	// GetChallenge returns a challenge by value regardless of expiry.
	GetChallenge(ctx context.Context, value string) (domain.Challenge, error)

	// ConsumeChallenge atomically deletes an unexpired challenge.
	// Returns false when the row is missing or already expired.
	ConsumeChallenge(ctx context.Context, value string, now time.Time) (bool, error)

	// DeleteExpiredChallenges is housekeeping.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type Sessions interface {
	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns a session by id.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// RotateSession swaps both token hashes and the expiry on the row
	// identified by id, but only while the stored refresh hash still
	// matches oldRefreshHash. Returns false when another rotation won.
	RotateSession(ctx context.Context, id, oldRefreshHash, newAccessHash, newRefreshHash string, expiresAt time.Time) (bool, error)

	// DeleteSession removes a session (logout).
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type AuditEvents interface {
	// CreateAuditEvent inserts one encrypted audit row.
	CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListAuditEvents returns rows matching the filter, newest first.
	ListAuditEvents(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error)

	// AuditStats aggregates counts by action and platform over the
	// window. Only plaintext columns are read.
	AuditStats(ctx context.Context, since time.Time) ([]domain.ActionStats, error)

	// DeleteAuditEventsBefore removes rows older than cutoff, returning
	// the number deleted.
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
