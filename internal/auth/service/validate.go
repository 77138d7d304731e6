package service

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
	MinPasswordLen = 8
)

var (
	ErrBadUsername  = errors.New("invalid_username")
	ErrWeakPassword = errors.New("weak_password")

	usernameRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)
)

// NormalizeUsername lowercases and trims a presented username. Run it
// before validation and before any store lookup so usernames compare
// case-insensitively.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateUsername enforces the username format: 3 to 32 characters
// drawn from [a-z0-9_.-]. The input is expected to be normalized.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLen || len(username) > MaxUsernameLen {
		return ErrBadUsername
	}
	if !usernameRe.MatchString(username) {
		return ErrBadUsername
	}
	return nil
}

// ValidatePassword enforces minimum strength: at least 8 characters
// containing at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}
