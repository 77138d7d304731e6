package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
	"github.com/picketapp/picket/internal/auth/store"
	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/picketapp/picket/pkg/idx"
	"github.com/picketapp/picket/pkg/slogx"
)

// Internal failure reasons recorded in the audit trail. Clients only
// ever see a generic authentication error.
const (
	reasonExpiredChallenge  = "expired_challenge"
	reasonInvalidSignature  = "invalid_signature"
	reasonKeyMismatch       = "public_key_mismatch"
	reasonDeviceNotFound    = "device_not_found"
	reasonUserNotFound      = "user_not_found"
	reasonNoPassword        = "password_not_enrolled"
	reasonWrongPassword     = "invalid_password"
	reasonDeviceMismatch    = "device_mismatch"
	reasonDeviceExists      = "device_already_registered"
	reasonBadPublicKey      = "invalid_public_key"
	reasonUsernameTaken     = "username_taken"
	reasonStaleRefreshToken = "stale_refresh_token"
)

var (
	ErrDeviceExists  = errors.New("device_already_registered")
	ErrBadPublicKey  = errors.New("invalid_public_key")
	ErrBadPlatform   = errors.New("invalid_platform")
	ErrUsernameTaken = errors.New("username_taken")
	ErrNotOwner      = errors.New("device_not_owned")
)

// AuthService is the flow controller tying challenges, signature
// verification, credentials and token issuance together. Every
// terminal outcome is audited; failures carry their reason only in the
// audit record.
type AuthService struct {
	Store      store.Store
	Challenges *ChallengeService
	Tokens     *TokenService
	Audit      *AuditService

	// AllowRawMessage enables the compatibility fallback that accepts
	// signatures over the undigested challenge bytes.
	AllowRawMessage bool
}

// RegisterDevice creates a user bound to a new device plus its first
// session, all in one transaction. The device id is the uniqueness
// anchor: a second registration for the same device gets ErrDeviceExists.
func (s *AuthService) RegisterDevice(ctx context.Context, deviceID, publicKeyHex, platform, displayName string) (domain.User, domain.TokenPair, error) {
	deviceID = strings.TrimSpace(deviceID)
	publicKeyHex = strings.TrimSpace(publicKeyHex)
	if platform == "" {
		platform = domain.PlatformWeb
	}

	if deviceID == "" {
		return domain.User{}, domain.TokenPair{}, ErrBadPublicKey
	}
	if !domain.ValidPlatform(platform) {
		return domain.User{}, domain.TokenPair{}, ErrBadPlatform
	}
	if !cryptox.ValidPublicKey(publicKeyHex) {
		s.audit(domain.AuditEntry{
			Action:   domain.AuditSignupFailed,
			DeviceID: deviceID,
			Platform: platform,
			Reason:   reasonBadPublicKey,
		})
		return domain.User{}, domain.TokenPair{}, ErrBadPublicKey
	}

	user := domain.User{
		ID:          idx.New().String(),
		DeviceID:    deviceID,
		PublicKey:   publicKeyHex,
		Platform:    platform,
		DisplayName: strings.TrimSpace(displayName),
	}

	var pair domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		var err error
		pair, _, err = s.Tokens.IssueTx(ctx, tx, user, deviceID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			s.audit(domain.AuditEntry{
				Action:   domain.AuditSignupFailed,
				DeviceID: deviceID,
				Platform: platform,
				Reason:   reasonDeviceExists,
			})
			return domain.User{}, domain.TokenPair{}, ErrDeviceExists
		}
		return domain.User{}, domain.TokenPair{}, err
	}

	s.audit(domain.AuditEntry{
		Action:     domain.AuditSignupSuccess,
		UserID:     user.ID,
		DeviceID:   deviceID,
		EntityType: "user",
		EntityID:   user.ID,
		Platform:   platform,
		Success:    true,
	})
	return user, pair, nil
}

// VerifyDevice is the signature-only login. The presented challenge
// must be live, the device known, the signature valid under the stored
// key and the presented key identical to the stored one. Consuming the
// challenge is the last gate so a replayed or raced verification fails
// even after a valid signature check.
func (s *AuthService) VerifyDevice(ctx context.Context, deviceID, challengeValue, signatureHex, publicKeyHex string) (domain.User, domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	fail := func(user domain.User, platform, reason string) (domain.User, domain.TokenPair, error) {
		s.audit(domain.AuditEntry{
			Action:   domain.AuditLoginFailed,
			UserID:   user.ID,
			DeviceID: deviceID,
			Platform: platform,
			Reason:   reason,
		})
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	fresh, err := s.Challenges.IsFresh(ctx, challengeValue)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if !fresh {
		return fail(domain.User{}, "", reasonExpiredChallenge)
	}

	user, err := s.Store.Users().GetUserByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail(domain.User{}, "", reasonDeviceNotFound)
		}
		return domain.User{}, domain.TokenPair{}, err
	}

	if publicKeyHex != "" &&
		cryptox.NormalizePublicKey(publicKeyHex) != cryptox.NormalizePublicKey(user.PublicKey) {
		return fail(user, user.Platform, reasonKeyMismatch)
	}

	strategy, ok := cryptox.VerifyDeviceSignature(
		[]byte(challengeValue), signatureHex, user.PublicKey, s.AllowRawMessage)
	if !ok {
		return fail(user, user.Platform, reasonInvalidSignature)
	}
	if strategy == cryptox.StrategyRawMessage {
		l.Warn("signature verified via raw message fallback",
			"device_id", deviceID, "strategy", strategy)
	}

	// Single-use gate. A concurrent verification of the same challenge
	// loses here, after its signature already checked out.
	consumed, err := s.Challenges.Consume(ctx, challengeValue)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if !consumed {
		return fail(user, user.Platform, reasonExpiredChallenge)
	}

	pair, _, err := s.Tokens.Issue(ctx, user, deviceID)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	if err := s.Store.Users().TouchLastLogin(ctx, user.ID); err != nil {
		l.Error("failed to touch last login", "user_id", user.ID, "error", err)
	}

	s.audit(domain.AuditEntry{
		Action:   domain.AuditLoginSuccess,
		UserID:   user.ID,
		DeviceID: deviceID,
		Platform: user.Platform,
		Success:  true,
		Metadata: `{"factors":"signature"}`,
	})
	return user, pair, nil
}

// SetPassword enrolls the optional second factor and returns the
// stored (normalized) username. The caller must own the device; the
// username must validate and be unused.
func (s *AuthService) SetPassword(ctx context.Context, userID, deviceID, username, password string) (string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.DeviceID != deviceID {
		return "", ErrNotOwner
	}

	username = NormalizeUsername(username)
	if err := ValidateUsername(username); err != nil {
		return "", err
	}
	if err := ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return "", err
	}

	if err := s.Store.Users().SetCredentials(ctx, userID, username, hash); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			s.audit(domain.AuditEntry{
				Action:   domain.AuditPasswordChanged,
				UserID:   userID,
				DeviceID: deviceID,
				Platform: user.Platform,
				Reason:   reasonUsernameTaken,
			})
			return "", ErrUsernameTaken
		}
		return "", err
	}

	s.audit(domain.AuditEntry{
		Action:     domain.AuditPasswordChanged,
		UserID:     userID,
		Username:   username,
		DeviceID:   deviceID,
		EntityType: "user",
		EntityID:   userID,
		Platform:   user.Platform,
		Success:    true,
	})
	return username, nil
}

// HybridLogin requires every factor at once: a live challenge, a valid
// device signature, a presented key matching the stored one and the
// enrolled password. All failures collapse to the same generic error;
// the audit record keeps the real reason.
func (s *AuthService) HybridLogin(ctx context.Context, username, password, challengeValue, signatureHex, deviceID, publicKeyHex string) (domain.User, domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	username = NormalizeUsername(username)

	fail := func(user domain.User, platform, reason string) (domain.User, domain.TokenPair, error) {
		s.audit(domain.AuditEntry{
			Action:   domain.AuditLoginFailed,
			UserID:   user.ID,
			Username: username,
			DeviceID: deviceID,
			Platform: platform,
			Reason:   reason,
		})
		return domain.User{}, domain.TokenPair{}, ErrInvalidCredentials
	}

	fresh, err := s.Challenges.IsFresh(ctx, challengeValue)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if !fresh {
		return fail(domain.User{}, "", reasonExpiredChallenge)
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so username probing reads the same.
			_ = cryptox.VerifyPassword(password, "")
			return fail(domain.User{}, "", reasonUserNotFound)
		}
		return domain.User{}, domain.TokenPair{}, err
	}

	if !user.HasPassword() {
		return fail(user, user.Platform, reasonNoPassword)
	}
	if deviceID != "" && user.DeviceID != deviceID {
		return fail(user, user.Platform, reasonDeviceMismatch)
	}
	if publicKeyHex != "" &&
		cryptox.NormalizePublicKey(publicKeyHex) != cryptox.NormalizePublicKey(user.PublicKey) {
		return fail(user, user.Platform, reasonKeyMismatch)
	}

	strategy, ok := cryptox.VerifyDeviceSignature(
		[]byte(challengeValue), signatureHex, user.PublicKey, s.AllowRawMessage)
	if !ok {
		return fail(user, user.Platform, reasonInvalidSignature)
	}
	if strategy == cryptox.StrategyRawMessage {
		l.Warn("signature verified via raw message fallback",
			"device_id", user.DeviceID, "strategy", strategy)
	}

	if err := cryptox.VerifyPassword(password, *user.PasswordHash); err != nil {
		return fail(user, user.Platform, reasonWrongPassword)
	}

	consumed, err := s.Challenges.Consume(ctx, challengeValue)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}
	if !consumed {
		return fail(user, user.Platform, reasonExpiredChallenge)
	}

	pair, _, err := s.Tokens.Issue(ctx, user, user.DeviceID)
	if err != nil {
		return domain.User{}, domain.TokenPair{}, err
	}

	if err := s.Store.Users().TouchLastLogin(ctx, user.ID); err != nil {
		l.Error("failed to touch last login", "user_id", user.ID, "error", err)
	}

	s.audit(domain.AuditEntry{
		Action:   domain.AuditLoginSuccess,
		UserID:   user.ID,
		Username: username,
		DeviceID: user.DeviceID,
		Platform: user.Platform,
		Success:  true,
		Metadata: `{"factors":"signature+password"}`,
	})
	return user, pair, nil
}

// Refresh rotates a session and audits the outcome.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	pair, session, err := s.Tokens.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefresh) {
			s.audit(domain.AuditEntry{
				Action: domain.AuditLoginFailed,
				Reason: reasonStaleRefreshToken,
			})
		}
		return domain.TokenPair{}, err
	}

	s.audit(domain.AuditEntry{
		Action:     domain.AuditTokenRefreshed,
		UserID:     session.UserID,
		DeviceID:   session.DeviceID,
		EntityType: "session",
		EntityID:   session.ID,
		Success:    true,
	})
	return pair, nil
}

// Logout deletes the caller's session. Deleting an already-deleted
// session is fine; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	session, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if session.UserID != userID {
		return ErrNotOwner
	}

	if err := s.Store.Sessions().DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	s.audit(domain.AuditEntry{
		Action:     domain.AuditLogout,
		UserID:     userID,
		DeviceID:   session.DeviceID,
		EntityType: "session",
		EntityID:   sessionID,
		Success:    true,
	})
	return nil
}

func (s *AuthService) audit(entry domain.AuditEntry) {
	if s.Audit == nil {
		return
	}
	entry.OccurredAt = time.Now().UTC()
	s.Audit.Log(entry)
}
