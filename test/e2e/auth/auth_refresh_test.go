package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/picketapp/picket/pkg/authapi"
	"github.com/stretchr/testify/require"
)

func TestRefreshRotatesTokenPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-refresh-1")
	first := env.register(t, d)

	second, err := env.Client.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, second)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The new access token is live.
	_, err = env.Client.Me(ctx, second.AccessToken)
	require.NoError(t, err)
}

func TestRefreshRejectsReusedToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-refresh-reuse")
	first := env.register(t, d)

	_, err := env.Client.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	// The superseded refresh token is dead.
	_, err = env.Client.Refresh(ctx, first.RefreshToken)
	apiErr := assertAPIError(t, err, http.StatusUnauthorized)
	require.Equal(t, authapi.ErrorCodeInvalidGrant, apiErr.Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-refresh-access")
	tokens := env.register(t, d)

	_, err := env.Client.Refresh(context.Background(), tokens.AccessToken)
	assertAPIError(t, err, http.StatusUnauthorized)
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-logout-1")
	tokens := env.register(t, d)

	require.NoError(t, env.Client.Logout(ctx, tokens.AccessToken))

	// The refresh token of the revoked session no longer rotates.
	_, err := env.Client.Refresh(ctx, tokens.RefreshToken)
	assertAPIError(t, err, http.StatusUnauthorized)

	// Logout is idempotent.
	require.NoError(t, env.Client.Logout(ctx, tokens.AccessToken))
}
