package cryptox_test

import (
	"strings"
	"testing"

	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const testFieldKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestFieldCipherRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := cryptox.NewFieldCipher(testFieldKey)
	require.NoError(t, err)

	for _, plaintext := range []string{"", "user-01J3", "ünïcode £ text", strings.Repeat("x", 4096)} {
		enc, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		require.NotEmpty(t, enc.IV)
		require.NotEmpty(t, enc.Tag)

		got, err := c.Decrypt(enc)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestFieldCipherFreshIVPerCall(t *testing.T) {
	t.Parallel()

	c, err := cryptox.NewFieldCipher(testFieldKey)
	require.NoError(t, err)

	a, err := c.Encrypt("same input")
	require.NoError(t, err)
	b, err := c.Encrypt("same input")
	require.NoError(t, err)

	require.NotEqual(t, a.IV, b.IV)
	require.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestFieldCipherRejectsTampering(t *testing.T) {
	t.Parallel()

	c, err := cryptox.NewFieldCipher(testFieldKey)
	require.NoError(t, err)

	enc, err := c.Encrypt("secret value")
	require.NoError(t, err)

	flip := func(s string) string {
		b := []byte(s)
		if b[0] == 'f' {
			b[0] = '0'
		} else {
			b[0] = 'f'
		}
		return string(b)
	}

	cases := map[string]cryptox.EncryptedField{
		"ciphertext":     {Ciphertext: flip(enc.Ciphertext), IV: enc.IV, Tag: enc.Tag},
		"tag":            {Ciphertext: enc.Ciphertext, IV: enc.IV, Tag: flip(enc.Tag)},
		"iv":             {Ciphertext: enc.Ciphertext, IV: flip(enc.IV), Tag: enc.Tag},
		"non-hex":        {Ciphertext: "zz", IV: enc.IV, Tag: enc.Tag},
		"truncated tag":  {Ciphertext: enc.Ciphertext, IV: enc.IV, Tag: enc.Tag[:6]},
		"wrong-sized iv": {Ciphertext: enc.Ciphertext, IV: "aabb", Tag: enc.Tag},
	}
	for name, f := range cases {
		_, err := c.Decrypt(f)
		require.ErrorIs(t, err, cryptox.ErrFieldTampered, "case %s", name)
	}
}

func TestFieldCipherWrongKeyFailsAuthentication(t *testing.T) {
	t.Parallel()

	a, err := cryptox.NewFieldCipher(testFieldKey)
	require.NoError(t, err)
	b, err := cryptox.NewFieldCipher(strings.Repeat("ff", 32))
	require.NoError(t, err)

	enc, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(enc)
	require.ErrorIs(t, err, cryptox.ErrFieldTampered)
}

func TestNewFieldCipherValidatesKey(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"", "abcd", strings.Repeat("g", 64), strings.Repeat("aa", 33)} {
		_, err := cryptox.NewFieldCipher(key)
		require.ErrorIs(t, err, cryptox.ErrBadFieldKey, "key %q", key)
	}
}
