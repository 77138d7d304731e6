package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/picketapp/picket/pkg/authapi"
	"github.com/stretchr/testify/require"
)

func TestRegisterDevice(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-register-1")

	tokens := env.register(t, d)
	require.NotEmpty(t, tokens.UserID)

	// The first token pair works immediately.
	me, err := env.Client.Me(context.Background(), tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, tokens.UserID, me.UserID)
	require.Equal(t, d.id, me.DeviceID)
	require.Equal(t, "ios", me.Platform)
	require.False(t, me.HasPassword)
}

func TestRegisterDeviceConflict(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-register-dup")
	env.register(t, d)

	// Same device id with a different key must be rejected.
	other := newDevice(t, d.id)
	_, err := env.Client.Register(context.Background(), authapi.RegisterRequest{
		DeviceID:  other.id,
		PublicKey: other.pubHex,
	})
	apiErr := assertAPIError(t, err, http.StatusConflict)
	require.Equal(t, authapi.ErrorCodeConflict, apiErr.Code)
}

func TestRegisterDeviceRejectsBadKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Client.Register(context.Background(), authapi.RegisterRequest{
		DeviceID:  "e2e-register-bad",
		PublicKey: "deadbeef",
	})
	assertAPIError(t, err, http.StatusBadRequest)
}

func TestRegisterDeviceRejectsBadPlatform(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-register-platform")

	_, err := env.Client.Register(context.Background(), authapi.RegisterRequest{
		DeviceID:  d.id,
		PublicKey: d.pubHex,
		Platform:  "windows",
	})
	assertAPIError(t, err, http.StatusBadRequest)
}
