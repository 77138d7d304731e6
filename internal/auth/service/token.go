package service

import (
	"context"
	"errors"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
	"github.com/picketapp/picket/internal/auth/store"
	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/picketapp/picket/pkg/idx"
	"github.com/picketapp/picket/pkg/jwtx"
	"github.com/picketapp/picket/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
)

// TokenService mints HS256 access/refresh pairs and rotates them.
// Access and refresh tokens are signed with distinct secrets so one
// class can never be replayed as the other.
type TokenService struct {
	Store         store.Store
	AccessSigner  *jwtx.HS256
	RefreshSigner *jwtx.HS256
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// AdminUserIDs lists users that receive the audit:read scope in
	// their access tokens.
	AdminUserIDs map[string]struct{}
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// ScopesFor returns the scopes embedded in a user's tokens.
func (s *TokenService) ScopesFor(userID string) []string {
	scopes := []string{jwtx.ScopeUser}
	if _, ok := s.AdminUserIDs[userID]; ok {
		scopes = append(scopes, jwtx.ScopeAuditRead)
	}
	return scopes
}

// IssueTx mints a token pair and persists its session inside the
// caller's transaction so a user mutation and its first session commit
// or roll back together.
func (s *TokenService) IssueTx(ctx context.Context, tx store.Tx, user domain.User, deviceID string) (domain.TokenPair, domain.Session, error) {
	now := time.Now().UTC()
	sessionID := idx.New().String()
	scopes := s.ScopesFor(user.ID)

	pair, session, err := s.mint(user.ID, sessionID, deviceID, scopes, now)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}

	if err := tx.Sessions().CreateSession(ctx, session); err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}
	return pair, session, nil
}

// Issue is IssueTx wrapped in its own transaction.
func (s *TokenService) Issue(ctx context.Context, user domain.User, deviceID string) (domain.TokenPair, domain.Session, error) {
	var (
		pair    domain.TokenPair
		session domain.Session
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		pair, session, err = s.IssueTx(ctx, tx, user, deviceID)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}
	return pair, session, nil
}

// Refresh validates a refresh token and atomically rotates its session.
// Both hashes and the expiry move in a single conditional UPDATE keyed
// on the old refresh hash, so of two concurrent refreshes exactly one
// wins and the other gets ErrInvalidRefresh.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, domain.Session, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	claims, err := s.RefreshSigner.Verify(refreshToken)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, ErrInvalidRefresh
	}

	session, err := s.Store.Sessions().GetSessionByID(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, domain.Session{}, ErrInvalidRefresh
		}
		return domain.TokenPair{}, domain.Session{}, err
	}

	// The presented token must be the session's current refresh token.
	oldFP := cryptox.FingerprintToken(refreshToken)
	if session.RefreshHash != oldFP {
		l.Info("refresh token is stale", "sid", session.ID)
		return domain.TokenPair{}, domain.Session{}, ErrInvalidRefresh
	}
	if now.After(session.ExpiresAt) {
		return domain.TokenPair{}, domain.Session{}, ErrInvalidRefresh
	}

	user, err := s.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, domain.Session{}, ErrInvalidRefresh
		}
		return domain.TokenPair{}, domain.Session{}, err
	}

	scopes := s.ScopesFor(user.ID)
	pair, rotated, err := s.mint(user.ID, session.ID, session.DeviceID, scopes, now)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}

	ok, err := s.Store.Sessions().RotateSession(ctx, session.ID, oldFP,
		rotated.AccessHash, rotated.RefreshHash, rotated.ExpiresAt)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}
	if !ok {
		// A concurrent refresh rotated the session first.
		l.Info("lost refresh rotation race", "sid", session.ID)
		return domain.TokenPair{}, domain.Session{}, ErrInvalidRefresh
	}

	rotated.UserID = session.UserID
	return pair, rotated, nil
}

// mint signs both tokens and builds the matching session row. Nothing
// is persisted here.
func (s *TokenService) mint(userID, sessionID, deviceID string, scopes []string, now time.Time) (domain.TokenPair, domain.Session, error) {
	accessClaims := jwtx.NewClaims(userID, sessionID, deviceID, jwtx.UseAccess, scopes, s.accessTTL(), s.AccessSigner.Issuer(), now)
	accessToken, err := s.AccessSigner.Sign(accessClaims)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}

	refreshClaims := jwtx.NewClaims(userID, sessionID, deviceID, jwtx.UseRefresh, scopes, s.refreshTTL(), s.RefreshSigner.Issuer(), now)
	refreshToken, err := s.RefreshSigner.Sign(refreshClaims)
	if err != nil {
		return domain.TokenPair{}, domain.Session{}, err
	}

	session := domain.Session{
		ID:          sessionID,
		UserID:      userID,
		DeviceID:    deviceID,
		AccessHash:  cryptox.FingerprintToken(accessToken),
		RefreshHash: cryptox.FingerprintToken(refreshToken),
		Scopes:      scopes,
		ExpiresAt:   now.Add(s.refreshTTL()),
	}

	pair := domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
	}
	return pair, session, nil
}
