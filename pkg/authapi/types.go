package authapi

import "time"

// ErrorResponse is the JSON error envelope every endpoint returns.
// Client code should use the APIError type from errors.go instead.
type ErrorResponse struct {
	// Error is the machine-readable error code
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ChallengeRequest asks for a fresh signing challenge. The device id
// is optional; when present, re-requesting replaces the device's
// earlier challenge.
type ChallengeRequest struct {
	DeviceID string `json:"device_id,omitempty"`
}

// ChallengeResponse carries the nonce the device must sign, verbatim.
type ChallengeResponse struct {
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterRequest enrolls a new device and creates its user.
type RegisterRequest struct {
	// DeviceID uniquely identifies the device installation
	DeviceID string `json:"device_id"`

	// PublicKey is the hex-encoded P-256 public key (04||X||Y or X||Y)
	PublicKey string `json:"public_key"`

	// Platform is one of "web", "ios", "android"; defaults to "web"
	Platform string `json:"platform,omitempty"`

	// DisplayName is an optional human-readable name
	DisplayName string `json:"display_name,omitempty"`
}

// VerifyRequest is the signature-only login: the device proves key
// possession by signing the challenge value.
type VerifyRequest struct {
	DeviceID  string `json:"device_id"`
	Challenge string `json:"challenge"`

	// Signature is hex encoded, either fixed-length r||s or ASN.1 DER
	Signature string `json:"signature"`

	// PublicKey restates the device key and must match the registered
	// one
	PublicKey string `json:"public_key"`
}

// PasswordRequest enrolls the optional password second factor for the
// authenticated user's device.
type PasswordRequest struct {
	DeviceID string `json:"device_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// PasswordResponse echoes the username credentials were stored under,
// after normalization.
type PasswordResponse struct {
	Username string `json:"username"`
}

// LoginRequest is the hybrid login requiring both the device signature
// and the enrolled password.
type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
	DeviceID  string `json:"device_id,omitempty"`

	// PublicKey must match the key registered for the account's device
	PublicKey string `json:"public_key"`
}

// RefreshRequest rotates an access/refresh pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by register, verify, login and refresh.
type TokenResponse struct {
	// AccessToken is the JWT used to authenticate API requests
	AccessToken string `json:"access_token"`

	// RefreshToken is the JWT used to obtain new token pairs
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// UserID of the authenticated user
	UserID string `json:"user_id,omitempty"`
}

// UserResponse describes the authenticated user.
type UserResponse struct {
	UserID      string     `json:"user_id"`
	DeviceID    string     `json:"device_id"`
	Platform    string     `json:"platform"`
	Username    string     `json:"username,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	HasPassword bool       `json:"has_password"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// AuditLogField is a decrypted audit field; OK is false when the
// stored ciphertext failed authentication.
type AuditLogField struct {
	Value string `json:"value"`
	OK    bool   `json:"ok"`
}

// AuditLogEntry is one decrypted audit event.
type AuditLogEntry struct {
	ID         string        `json:"id"`
	Action     string        `json:"action"`
	UserID     AuditLogField `json:"user_id"`
	Username   AuditLogField `json:"username"`
	Metadata   AuditLogField `json:"metadata"`
	DeviceHash string        `json:"device_hash"`
	EntityType string        `json:"entity_type,omitempty"`
	EntityID   string        `json:"entity_id,omitempty"`
	Platform   string        `json:"platform,omitempty"`
	Success    bool          `json:"success"`
	Reason     string        `json:"reason,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// AuditLogsResponse wraps the admin log listing.
type AuditLogsResponse struct {
	Events []AuditLogEntry `json:"events"`
}

// AuditStatsEntry is one row of the per-action aggregate.
type AuditStatsEntry struct {
	Action   string `json:"action"`
	Platform string `json:"platform"`
	Count    int64  `json:"count"`
	Failures int64  `json:"failures"`
}

// AuditStatsResponse wraps the admin stats listing.
type AuditStatsResponse struct {
	WindowDays int               `json:"window_days"`
	Stats      []AuditStatsEntry `json:"stats"`
}

// HealthChecks itemizes dependency state for the readiness probe.
type HealthChecks struct {
	Database string `json:"database"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
