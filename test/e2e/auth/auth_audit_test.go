package auth_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/picketapp/picket/pkg/authapi"
	"github.com/stretchr/testify/require"
)

func TestAuditRequiresScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-audit-noscope")
	tokens := env.register(t, d)

	_, err := env.Client.AuditLogs(ctx, tokens.AccessToken, nil)
	apiErr := assertAPIError(t, err, http.StatusForbidden)
	require.Equal(t, authapi.ErrorCodeInsufficientScope, apiErr.Code)

	_, err = env.Client.AuditStats(ctx, tokens.AccessToken, 7)
	assertAPIError(t, err, http.StatusForbidden)
}

func TestAuditLogsDecryptForAdmins(t *testing.T) {
	env := newTestEnv(t)
	d := newDevice(t, "e2e-audit-admin")
	first := env.register(t, d)

	// Promotion only affects tokens issued afterwards, so log in again.
	env.grantAdmin(first.UserID)
	admin := env.verify(t, d)

	// register + verify both leave an audit trail.
	resp := waitForAuditEvents(t, env, admin.AccessToken, 2)

	var signup *authapi.AuditLogEntry
	for i := range resp.Events {
		if resp.Events[i].Action == "signup_success" {
			signup = &resp.Events[i]
		}
	}
	require.NotNil(t, signup, "signup event should be present")
	require.True(t, signup.Success)
	require.True(t, signup.UserID.OK)
	require.Equal(t, first.UserID, signup.UserID.Value)

	// The device identifier is stored hashed, never verbatim.
	require.NotEmpty(t, signup.DeviceHash)
	require.NotEqual(t, d.id, signup.DeviceHash)

	// Timestamps are coarsened to the hour.
	require.Equal(t, signup.OccurredAt, signup.OccurredAt.Truncate(time.Hour))
}

func TestAuditLogsFilterByAction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-audit-filter")
	first := env.register(t, d)
	env.grantAdmin(first.UserID)
	admin := env.verify(t, d)

	waitForAuditEvents(t, env, admin.AccessToken, 2)

	query := url.Values{}
	query.Set("action", "login_success")
	resp, err := env.Client.AuditLogs(ctx, admin.AccessToken, query)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Events)
	for _, e := range resp.Events {
		require.Equal(t, "login_success", e.Action)
	}
}

func TestAuditStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := newDevice(t, "e2e-audit-stats")
	first := env.register(t, d)
	env.grantAdmin(first.UserID)
	admin := env.verify(t, d)

	waitForAuditEvents(t, env, admin.AccessToken, 2)

	stats, err := env.Client.AuditStats(ctx, admin.AccessToken, 7)
	require.NoError(t, err)
	require.Equal(t, 7, stats.WindowDays)
	require.NotEmpty(t, stats.Stats)

	var sawSignup bool
	for _, row := range stats.Stats {
		if row.Action == "signup_success" {
			sawSignup = true
			require.GreaterOrEqual(t, row.Count, int64(1))
		}
	}
	require.True(t, sawSignup, "stats should aggregate the signup event")
}
