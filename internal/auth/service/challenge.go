package service

import (
	"context"
	"errors"
	"time"

	"github.com/picketapp/picket/internal/auth/domain"
	"github.com/picketapp/picket/internal/auth/store"
	"github.com/picketapp/picket/pkg/cryptox"
)

// ChallengeService issues and consumes the single-use nonces that
// devices sign. Challenges live for five minutes and are deleted the
// moment a verification succeeds.
type ChallengeService struct {
	Store store.Store
	TTL   time.Duration
}

func (s *ChallengeService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return domain.DefaultChallengeTTL
}

// Issue mints a fresh challenge. A non-empty deviceID hint replaces any
// earlier challenge issued for the same device, so only the latest one
// can be redeemed.
func (s *ChallengeService) Issue(ctx context.Context, deviceID string) (domain.Challenge, error) {
	value, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Challenge{}, err
	}

	now := time.Now().UTC()
	c := domain.Challenge{
		Value:     value,
		DeviceID:  deviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl()),
	}

	if err := s.Store.Challenges().CreateChallenge(ctx, c); err != nil {
		return domain.Challenge{}, err
	}
	return c, nil
}

// Peek loads a challenge without consuming it so the flow controller
// can distinguish expired from missing before doing signature work.
func (s *ChallengeService) Peek(ctx context.Context, value string) (domain.Challenge, error) {
	return s.Store.Challenges().GetChallenge(ctx, value)
}

// Consume atomically deletes the challenge while it is still live.
// False means it was already consumed, expired or never existed; the
// caller treats all three the same way.
func (s *ChallengeService) Consume(ctx context.Context, value string) (bool, error) {
	return s.Store.Challenges().ConsumeChallenge(ctx, value, time.Now().UTC())
}

// ConsumeTx is Consume inside an existing transaction.
func (s *ChallengeService) ConsumeTx(ctx context.Context, tx store.Tx, value string) (bool, error) {
	return tx.Challenges().ConsumeChallenge(ctx, value, time.Now().UTC())
}

// IsFresh reports whether the challenge exists and is unexpired. It
// maps store.ErrNotFound to (false, nil) so callers branch on the bool.
func (s *ChallengeService) IsFresh(ctx context.Context, value string) (bool, error) {
	c, err := s.Peek(ctx, value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !c.Expired(time.Now().UTC()), nil
}
