package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the minimum number of bytes of HMAC secret material we
// accept. Anything shorter is trivially brute-forceable.
const MinSecretLen = 32

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrTokenUse    = errors.New("jwtx: wrong token use")
	ErrShortSecret = errors.New("jwtx: secret material too short")
)

// Verifier validates a JWT and gives back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// HS256 signs and verifies HMAC-SHA256 tokens for exactly one token class.
// Access and refresh tokens each get their own HS256 instance with distinct
// secret material, so a forged class swap fails signature verification
// outright.
type HS256 struct {
	secret   []byte
	issuer   string
	tokenUse string
}

// NewHS256 builds a signer/verifier pair for one token class.
func NewHS256(secret []byte, issuer, tokenUse string) (*HS256, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrShortSecret, len(secret), MinSecretLen)
	}
	if tokenUse != UseAccess && tokenUse != UseRefresh {
		return nil, fmt.Errorf("jwtx: unknown token use %q", tokenUse)
	}
	return &HS256{secret: secret, issuer: issuer, tokenUse: tokenUse}, nil
}

// Issuer returns the iss value this signer stamps and enforces.
func (s *HS256) Issuer() string { return s.issuer }

// Sign stamps the claims with this signer's token use and returns the
// compact serialization.
func (s *HS256) Sign(c Claims) (string, error) {
	c.TokenUse = s.tokenUse
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token: signature, exp/nbf, issuer, and the
// token-use marker.
func (s *HS256) Verify(token string) (Claims, error) {
	var claims Claims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSig
		}
		return s.secret, nil
	})
	switch {
	case err == nil && parsed.Valid:
		// fall through to our own claim checks
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return Claims{}, ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	default:
		return Claims{}, ErrMalformed
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return Claims{}, ErrIssuer
	}
	if claims.TokenUse != s.tokenUse {
		return Claims{}, ErrTokenUse
	}
	return claims, nil
}
