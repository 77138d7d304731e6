package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/picketapp/picket/pkg/authapi"
	"github.com/stretchr/testify/require"
)

// enrollPassword registers a device and sets up its password credentials.
func enrollPassword(t *testing.T, env *testEnv, d *device, username, password string) *authapi.TokenResponse {
	t.Helper()

	tokens := env.register(t, d)
	resp, err := env.Client.SetPassword(context.Background(), tokens.AccessToken, authapi.PasswordRequest{
		DeviceID: d.id,
		Username: username,
		Password: password,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Username)
	return tokens
}

// hybridLogin runs the two-factor login: fresh challenge, device signature,
// the device's public key and the enrolled password.
func hybridLogin(t *testing.T, env *testEnv, d *device, username, password string) (*authapi.TokenResponse, error) {
	t.Helper()
	ctx := context.Background()

	challenge, err := env.Client.Challenge(ctx, authapi.ChallengeRequest{DeviceID: d.id})
	require.NoError(t, err)

	return env.Client.Login(ctx, authapi.LoginRequest{
		Username:  username,
		Password:  password,
		Challenge: challenge.Challenge,
		Signature: d.sign(t, challenge.Challenge),
		DeviceID:  d.id,
		PublicKey: d.pubHex,
	})
}

func TestSetPasswordAndHybridLogin(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-login-1")
	enrollPassword(t, env, d, "alice", "Sup3rSecret")

	me, err := env.Client.Me(context.Background(), env.verify(t, d).AccessToken)
	require.NoError(t, err)
	require.True(t, me.HasPassword)
	require.Equal(t, "alice", me.Username)

	tokens, err := hybridLogin(t, env, d, "alice", "Sup3rSecret")
	require.NoError(t, err)
	assertTokenResponse(t, tokens)
}

func TestSetPasswordRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-login-weak")
	tokens := env.register(t, d)

	_, err := env.Client.SetPassword(context.Background(), tokens.AccessToken, authapi.PasswordRequest{
		DeviceID: d.id,
		Username: "bob",
		Password: "short1",
	})
	apiErr := assertAPIError(t, err, http.StatusBadRequest)
	require.Equal(t, authapi.ErrorCodeWeakPassword, apiErr.Code)
}

func TestSetPasswordRejectsTakenUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := newDevice(t, "e2e-login-taken-1")
	enrollPassword(t, env, first, "carol", "Sup3rSecret")

	second := newDevice(t, "e2e-login-taken-2")
	tokens := env.register(t, second)
	_, err := env.Client.SetPassword(ctx, tokens.AccessToken, authapi.PasswordRequest{
		DeviceID: second.id,
		Username: "carol",
		Password: "An0therSecret",
	})
	assertAPIError(t, err, http.StatusConflict)
}

func TestSetPasswordRejectsForeignDevice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := newDevice(t, "e2e-login-owner")
	env.register(t, owner)

	attacker := newDevice(t, "e2e-login-attacker")
	tokens := env.register(t, attacker)

	// The attacker's token must not set credentials on the owner's device.
	// Ownership failures read as not-found so the endpoint doesn't confirm
	// which device ids exist.
	_, err := env.Client.SetPassword(ctx, tokens.AccessToken, authapi.PasswordRequest{
		DeviceID: owner.id,
		Username: "mallory",
		Password: "Sup3rSecret",
	})
	assertAPIError(t, err, http.StatusNotFound)
}

func TestHybridLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-login-wrongpw")
	enrollPassword(t, env, d, "dave", "Sup3rSecret")

	_, err := hybridLogin(t, env, d, "dave", "WrongSecret1")
	apiErr := assertAPIError(t, err, http.StatusUnauthorized)
	require.Equal(t, authapi.ErrorCodeInvalidCredentials, apiErr.Code)
}

func TestHybridLoginRejectsUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-login-nouser")
	env.register(t, d)

	_, err := hybridLogin(t, env, d, "nobody", "Sup3rSecret")
	assertAPIError(t, err, http.StatusUnauthorized)
}

func TestHybridLoginRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-login-noenroll")
	env.register(t, d)

	// Signature-only users cannot use the password path.
	_, err := hybridLogin(t, env, d, "eve", "Sup3rSecret")
	assertAPIError(t, err, http.StatusUnauthorized)
}

func TestSetPasswordReturnsNormalizedUsername(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-login-norm")
	tokens := env.register(t, d)

	resp, err := env.Client.SetPassword(context.Background(), tokens.AccessToken, authapi.PasswordRequest{
		DeviceID: d.id,
		Username: "  Grace ",
		Password: "Sup3rSecret",
	})
	require.NoError(t, err)
	require.Equal(t, "grace", resp.Username)
}

func TestHybridLoginRejectsMismatchedKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-login-keymatch")
	enrollPassword(t, env, d, "heidi", "Sup3rSecret")

	imposter := newDevice(t, "e2e-login-imposter")

	challenge, err := env.Client.Challenge(ctx, authapi.ChallengeRequest{DeviceID: d.id})
	require.NoError(t, err)

	// Every factor checks out except the presented public key, which
	// belongs to a different device.
	_, err = env.Client.Login(ctx, authapi.LoginRequest{
		Username:  "heidi",
		Password:  "Sup3rSecret",
		Challenge: challenge.Challenge,
		Signature: d.sign(t, challenge.Challenge),
		DeviceID:  d.id,
		PublicKey: imposter.pubHex,
	})
	apiErr := assertAPIError(t, err, http.StatusUnauthorized)
	require.Equal(t, authapi.ErrorCodeInvalidCredentials, apiErr.Code)
}

func TestHybridLoginRequiresPublicKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-login-nokey")
	enrollPassword(t, env, d, "ivan", "Sup3rSecret")

	challenge, err := env.Client.Challenge(ctx, authapi.ChallengeRequest{DeviceID: d.id})
	require.NoError(t, err)

	_, err = env.Client.Login(ctx, authapi.LoginRequest{
		Username:  "ivan",
		Password:  "Sup3rSecret",
		Challenge: challenge.Challenge,
		Signature: d.sign(t, challenge.Challenge),
		DeviceID:  d.id,
	})
	assertAPIError(t, err, http.StatusBadRequest)
}

func TestHybridLoginFailureKeepsChallengeFresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-login-keepfresh")
	enrollPassword(t, env, d, "frank", "Sup3rSecret")

	challenge, err := env.Client.Challenge(ctx, authapi.ChallengeRequest{DeviceID: d.id})
	require.NoError(t, err)
	signature := d.sign(t, challenge.Challenge)

	// A wrong password must not consume the challenge.
	_, err = env.Client.Login(ctx, authapi.LoginRequest{
		Username:  "frank",
		Password:  "WrongSecret1",
		Challenge: challenge.Challenge,
		Signature: signature,
		DeviceID:  d.id,
		PublicKey: d.pubHex,
	})
	assertAPIError(t, err, http.StatusUnauthorized)

	// The same challenge still works once the password is right.
	tokens, err := env.Client.Login(ctx, authapi.LoginRequest{
		Username:  "frank",
		Password:  "Sup3rSecret",
		Challenge: challenge.Challenge,
		Signature: signature,
		DeviceID:  d.id,
		PublicKey: d.pubHex,
	})
	require.NoError(t, err)
	assertTokenResponse(t, tokens)
}
