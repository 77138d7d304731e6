package cryptox_test

import (
	"encoding/base64"
	"testing"

	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	require.Len(t, raw, cryptox.TokenSize256)

	other, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, tok, other)

	_, err = cryptox.GenerateToken(0)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	fp := cryptox.FingerprintToken("device-abc")
	require.Equal(t, fp, cryptox.FingerprintToken("device-abc"), "fingerprint must be deterministic")
	require.NotEqual(t, fp, cryptox.FingerprintToken("device-abd"))
	require.Len(t, fp, 43) // base64url of 32 bytes, no padding
}
