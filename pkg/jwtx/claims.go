package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short-lived access tokens, long-lived refresh tokens.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Token-use markers so an access token can never be replayed against the
// refresh endpoint (and vice versa), even though both are JWTs.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Permission scopes carried in access tokens.
const (
	ScopeUser      = "auth:user"
	ScopeAuditRead = "audit:read"
)

// Claims are the token claims shared by both token classes. Device binding
// lives in the "did" claim so a stolen token can be correlated to the device
// it was minted for.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the session id the token pair belongs to. It survives refresh
	// rotation.
	SID string `json:"sid,omitempty"`

	// DeviceID the token is bound to.
	DeviceID string `json:"did,omitempty"`

	// TokenUse is either UseAccess or UseRefresh.
	TokenUse string `json:"use,omitempty"`

	// Scopes the holder may exercise, e.g. "auth:user audit:read".
	Scopes []string `json:"scopes,omitempty"`
}

// NewClaims builds minimally-correct claims for one token class.
func NewClaims(
	subject, sid, deviceID, tokenUse string,
	scopes []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:      sid,
		DeviceID: deviceID,
		TokenUse: tokenUse,
		Scopes:   scopes,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used before
// it is valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// HasScope reports whether the claims carry the given scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
