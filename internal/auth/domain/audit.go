package domain

import (
	"time"

	"github.com/picketapp/picket/pkg/cryptox"
)

// AuditAction enumerates the recorded authentication events.
type AuditAction string

const (
	AuditSignupSuccess   AuditAction = "signup_success"
	AuditSignupFailed    AuditAction = "signup_failed"
	AuditLoginSuccess    AuditAction = "login_success"
	AuditLoginFailed     AuditAction = "login_failed"
	AuditPasswordChanged AuditAction = "password_changed"
	AuditTokenRefreshed  AuditAction = "token_refreshed"
	AuditLogout          AuditAction = "logout"
)

// AuditRetention is how long audit rows are kept before cleanup.
const AuditRetention = 30 * 24 * time.Hour

// AuditEntry is the plaintext input handed to the audit logger. The
// logger encrypts the identifying fields and hashes the device id
// before anything is persisted.
type AuditEntry struct {
	Action     AuditAction
	UserID     string
	Username   string
	DeviceID   string
	EntityType string
	EntityID   string
	Platform   string
	Metadata   string // small JSON blob, e.g. {"factors":"signature+password"}
	Success    bool
	Reason     string // internal failure reason, never sent to clients
	OccurredAt time.Time
}

// AuditEvent is the stored form. Identifying fields are AES-GCM
// triples, the device id is a one-way fingerprint and the timestamp is
// truncated to the hour.
type AuditEvent struct {
	ID         string
	Action     AuditAction
	UserID     cryptox.EncryptedField
	Username   cryptox.EncryptedField
	Metadata   cryptox.EncryptedField
	DeviceHash string
	EntityType string
	EntityID   string
	Platform   string
	Success    bool
	Reason     string
	OccurredAt time.Time // hour bucket
	CreatedAt  time.Time
}

// FieldResult carries one decrypted field. OK is false when the
// ciphertext failed to authenticate; Value is empty in that case.
type FieldResult struct {
	Value string `json:"value"`
	OK    bool   `json:"ok"`
}

// DecryptedEvent is the admin-facing view of an audit row.
type DecryptedEvent struct {
	ID         string      `json:"id"`
	Action     AuditAction `json:"action"`
	UserID     FieldResult `json:"user_id"`
	Username   FieldResult `json:"username"`
	Metadata   FieldResult `json:"metadata"`
	DeviceHash string      `json:"device_hash"`
	EntityType string      `json:"entity_type,omitempty"`
	EntityID   string      `json:"entity_id,omitempty"`
	Platform   string      `json:"platform,omitempty"`
	Success    bool        `json:"success"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// AuditFilter narrows admin log queries. Zero values mean no filter.
type AuditFilter struct {
	Action   AuditAction
	Platform string
	Success  *bool
	Since    time.Time
	Until    time.Time
	Limit    int
}

// ActionStats is one row of the aggregate view. It is computed from
// plaintext columns only.
type ActionStats struct {
	Action   AuditAction `json:"action"`
	Platform string      `json:"platform"`
	Count    int64       `json:"count"`
	Failures int64       `json:"failures"`
}
