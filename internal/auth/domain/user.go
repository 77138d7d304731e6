package domain

import "time"

// Platform values accepted at registration.
const (
	PlatformWeb     = "web"
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// ValidPlatform reports whether p is one of the known client platforms.
func ValidPlatform(p string) bool {
	switch p {
	case PlatformWeb, PlatformIOS, PlatformAndroid:
		return true
	}
	return false
}

type User struct {
	ID           string
	DeviceID     string
	PublicKey    string  // hex encoded P-256 point (04||X||Y or X||Y)
	Platform     string  // web, ios or android
	Username     *string // nil until hybrid credentials are set
	PasswordHash *string // argon2 encoded, nil until a password is set
	DisplayName  string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// HasPassword reports whether the hybrid login path is available for
// this user.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
