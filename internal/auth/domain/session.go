package domain

import "time"

// TokenPair is what the verify, login and refresh endpoints return: a
// short-lived JWT access token plus a longer-lived JWT refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until access expiry
}

// Session models a stored refresh session. Only SHA-256 fingerprints of
// the tokens are persisted; raw tokens never touch the database.
type Session struct {
	ID          string
	UserID      string
	DeviceID    string
	AccessHash  string // fingerprint of the current access token
	RefreshHash string // fingerprint of the current refresh token
	Scopes      []string
	ExpiresAt   time.Time // refresh expiry, the session is dead past this
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
