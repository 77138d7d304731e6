package domain

import "time"

// DefaultChallengeTTL bounds how long an issued challenge may be used
// before it is considered stale.
const DefaultChallengeTTL = 5 * time.Minute

// Challenge is a single-use nonce bound to an expiry. The value is the
// exact string the device must sign; consuming it deletes the row so a
// signature can never be replayed.
type Challenge struct {
	Value     string // base64url random nonce, primary key
	DeviceID  string // optional issuance hint, empty when anonymous
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
