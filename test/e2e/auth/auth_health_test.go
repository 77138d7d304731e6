package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/picketapp/picket/pkg/authapi"
	"github.com/stretchr/testify/require"
)

func TestLivez(t *testing.T) {
	env := newTestEnv(t)

	health, err := env.Client.Livez(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
	require.NotEmpty(t, health.Version)
	require.NotEmpty(t, health.Uptime)
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.Client.BaseURL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health authapi.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
}
