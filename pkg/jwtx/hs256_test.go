package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/picketapp/picket/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("unit-test-secret-material-0123456789abcdef")

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewHS256(testSecret, "picket-auth", jwtx.UseAccess)
	require.NoError(t, err)

	claims := jwtx.NewClaims(
		"user-1", "session-1", "device-1", jwtx.UseAccess,
		[]string{jwtx.ScopeUser},
		15*time.Minute, "picket-auth", time.Now(),
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(token, ".")))

	got, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "session-1", got.SID)
	require.Equal(t, "device-1", got.DeviceID)
	require.Equal(t, jwtx.UseAccess, got.TokenUse)
	require.True(t, got.HasScope(jwtx.ScopeUser))
	require.False(t, got.HasScope(jwtx.ScopeAuditRead))
}

func TestRejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewHS256([]byte("short"), "picket-auth", jwtx.UseAccess)
	require.ErrorIs(t, err, jwtx.ErrShortSecret)
}

func TestRejectsWrongTokenClass(t *testing.T) {
	t.Parallel()

	access, err := jwtx.NewHS256(testSecret, "picket-auth", jwtx.UseAccess)
	require.NoError(t, err)
	refresh, err := jwtx.NewHS256(testSecret, "picket-auth", jwtx.UseRefresh)
	require.NoError(t, err)

	claims := jwtx.NewClaims(
		"user-1", "sid", "did", jwtx.UseAccess, nil,
		time.Minute, "picket-auth", time.Now(),
	)
	token, err := access.Sign(claims)
	require.NoError(t, err)

	// Same secret but different class marker: must be rejected.
	_, err = refresh.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrTokenUse)
}

func TestRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	a, err := jwtx.NewHS256(testSecret, "picket-auth", jwtx.UseAccess)
	require.NoError(t, err)
	b, err := jwtx.NewHS256([]byte("another-secret-material-9876543210zyxwvu"), "picket-auth", jwtx.UseAccess)
	require.NoError(t, err)

	token, err := a.Sign(jwtx.NewClaims("u", "s", "d", jwtx.UseAccess, nil, time.Minute, "picket-auth", time.Now()))
	require.NoError(t, err)

	_, err = b.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestRejectsExpired(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewHS256(testSecret, "picket-auth", jwtx.UseAccess)
	require.NoError(t, err)

	claims := jwtx.NewClaims(
		"u", "s", "d", jwtx.UseAccess, nil,
		time.Minute, "picket-auth", time.Now().Add(-time.Hour),
	)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = signer.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestRejectsIssuerMismatch(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewHS256(testSecret, "picket-auth", jwtx.UseAccess)
	require.NoError(t, err)
	other, err := jwtx.NewHS256(testSecret, "someone-else", jwtx.UseAccess)
	require.NoError(t, err)

	token, err := signer.Sign(jwtx.NewClaims("u", "s", "d", jwtx.UseAccess, nil, time.Minute, "picket-auth", time.Now()))
	require.NoError(t, err)

	_, err = other.Verify(token)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestRejectsGarbage(t *testing.T) {
	t.Parallel()

	signer, err := jwtx.NewHS256(testSecret, "picket-auth", jwtx.UseAccess)
	require.NoError(t, err)

	_, err = signer.Verify("not.a.jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
