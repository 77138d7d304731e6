package cryptox_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

type testSigner struct {
	key    *ecdsa.PrivateKey
	pubHex string
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pub := append([]byte{0x04}, cryptox.EncodeRawSignature(key.PublicKey.X, key.PublicKey.Y)...)
	return &testSigner{key: key, pubHex: hex.EncodeToString(pub)}
}

// signRaw produces the fixed-length r||s encoding over SHA-256(message).
func (s *testSigner) signRaw(t *testing.T, message []byte) string {
	t.Helper()

	digest := sha256.Sum256(message)
	r, sv, err := ecdsa.Sign(rand.Reader, s.key, digest[:])
	require.NoError(t, err)
	return hex.EncodeToString(cryptox.EncodeRawSignature(r, sv))
}

// signDER produces the ASN.1 DER encoding over SHA-256(message).
func (s *testSigner) signDER(t *testing.T, message []byte) string {
	t.Helper()

	digest := sha256.Sum256(message)
	der, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	require.NoError(t, err)
	return hex.EncodeToString(der)
}

// signRawMessage signs the undigested message bytes in r||s form.
func (s *testSigner) signRawMessage(t *testing.T, message []byte) string {
	t.Helper()

	r, sv, err := ecdsa.Sign(rand.Reader, s.key, message)
	require.NoError(t, err)
	return hex.EncodeToString(cryptox.EncodeRawSignature(r, sv))
}

func TestVerifyRawEncoding(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	message := []byte("challenge-value-1234")

	strategy, ok := cryptox.VerifyDeviceSignature(message, signer.signRaw(t, message), signer.pubHex, false)
	require.True(t, ok)
	require.Equal(t, cryptox.StrategyRawDigest, strategy)
}

func TestVerifyDEREncoding(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	message := []byte("challenge-value-5678")

	strategy, ok := cryptox.VerifyDeviceSignature(message, signer.signDER(t, message), signer.pubHex, false)
	require.True(t, ok)
	require.Equal(t, cryptox.StrategyDERDigest, strategy)
}

func TestVerifyBareCoordinateKey(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	message := []byte("challenge")

	// Same key without the 0x04 point tag.
	bare := signer.pubHex[2:]
	_, ok := cryptox.VerifyDeviceSignature(message, signer.signRaw(t, message), bare, false)
	require.True(t, ok)
}

func TestVerifyFailsAgainstOtherKey(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	other := newTestSigner(t)
	message := []byte("challenge-value")

	for name, sig := range map[string]string{
		"raw": signer.signRaw(t, message),
		"der": signer.signDER(t, message),
	} {
		_, ok := cryptox.VerifyDeviceSignature(message, sig, other.pubHex, false)
		require.False(t, ok, "encoding %s verified against the wrong key", name)
	}
}

func TestVerifyFailsOnDifferentMessage(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	sig := signer.signRaw(t, []byte("original"))

	_, ok := cryptox.VerifyDeviceSignature([]byte("tampered"), sig, signer.pubHex, false)
	require.False(t, ok)
}

func TestRawMessageFallbackGated(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	message := []byte("unhashed-challenge-material-that-some-client-signed-directly")
	sig := signer.signRawMessage(t, message)

	// Disabled by default.
	_, ok := cryptox.VerifyDeviceSignature(message, sig, signer.pubHex, false)
	require.False(t, ok)

	// Enabled, it matches and is named so callers can flag the weaker path.
	strategy, ok := cryptox.VerifyDeviceSignature(message, sig, signer.pubHex, true)
	require.True(t, ok)
	require.Equal(t, cryptox.StrategyRawMessage, strategy)
}

func TestMalformedInputNeverPanics(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	message := []byte("msg")
	goodSig := signer.signRaw(t, message)

	cases := []struct {
		name   string
		sigHex string
		pubHex string
	}{
		{"non-hex signature", "zz-not-hex", signer.pubHex},
		{"empty signature", "", signer.pubHex},
		{"truncated raw signature", goodSig[:40], signer.pubHex},
		{"der marker with garbage body", "30ff00", signer.pubHex},
		{"non-hex key", goodSig, "nope"},
		{"short key", goodSig, "0401020304"},
		{"key not on curve", goodSig, "04" + repeatHex("ab", 64)},
		{"zero scalars", hex.EncodeToString(make([]byte, 64)), signer.pubHex},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := cryptox.VerifyDeviceSignature(message, tc.sigHex, tc.pubHex, true)
			require.False(t, ok)
		})
	}
}

func TestDERWithTrailingBytesRejected(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	message := []byte("msg")

	digest := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, signer.key, digest[:])
	require.NoError(t, err)

	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	require.NoError(t, err)

	padded := hex.EncodeToString(append(der, 0x00))
	_, ok := cryptox.VerifyDeviceSignature(message, padded, signer.pubHex, false)
	require.False(t, ok)
}

func repeatHex(pair string, n int) string {
	out := ""
	for range n {
		out += pair
	}
	return out
}
