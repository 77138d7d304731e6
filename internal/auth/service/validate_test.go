package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "picket-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestNormalizeUsername(t *testing.T) {
	t.Parallel()

	require.Equal(t, "alice", NormalizeUsername("  Alice "))
	require.Equal(t, "bob_01", NormalizeUsername("BOB_01"))
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	valid := []string{"abc", "alice", "bob_01", "a.b-c", strings.Repeat("x", 32)}
	for _, u := range valid {
		require.NoError(t, ValidateUsername(u), u)
	}

	invalid := []string{
		"",
		"ab",                       // too short
		strings.Repeat("x", 33),    // too long
		"Alice",                    // uppercase not allowed post-normalization
		"has space",
		"emojié",
		"semi;colon",
	}
	for _, u := range invalid {
		require.ErrorIs(t, ValidateUsername(u), ErrBadUsername, u)
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePassword("abcd1234"))
	require.NoError(t, ValidatePassword("long passphrase 9"))

	weak := []string{
		"",
		"short1",   // under 8
		"12345678", // no letter
		"abcdefgh", // no digit
	}
	for _, p := range weak {
		require.ErrorIs(t, ValidatePassword(p), ErrWeakPassword, p)
	}
}
