package auth_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	httpapi "github.com/picketapp/picket/internal/auth/http"
	"github.com/picketapp/picket/internal/auth/service"
	"github.com/picketapp/picket/internal/auth/store/drivers/sqlite"
	"github.com/picketapp/picket/pkg/authapi"
	"github.com/picketapp/picket/pkg/cryptox"
	"github.com/picketapp/picket/pkg/httpx"
	"github.com/picketapp/picket/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

/*
 * Common helpers for auth service end-to-end tests. Each test spins up an
 * in-process server backed by an in-memory database and talks to it through
 * the public authapi client, so the full HTTP surface (routing, middleware,
 * JSON codecs) is exercised without any external runtime.
 */

const (
	testIssuer        = "picket-auth-test"
	testAccessSecret  = "e2e-access-signing-secret-0123456789abcdef"
	testRefreshSecret = "e2e-refresh-signing-secret-0123456789abcdef"
	testFieldKey      = "8d969eef6ecad3c29a3a629280e686cf0c3f5d5a86aff3ca12020c923adc6c92"
)

// TestMain sets up a shared pepper file and relaxes the rate limit profiles
// so rapid back-to-back requests in tests don't trip the production limits.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "picket-e2e-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pepper dir: %v\n", err)
		os.Exit(1)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	relaxed := httpx.RateLimitConfig{
		RequestsPerWindow: 1000,
		Window:            time.Minute,
		Burst:             1000,
	}
	httpx.StrictLimit = relaxed
	httpx.ModerateLimit = relaxed
	httpx.LenientLimit = relaxed

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// testEnv bundles the in-process server with the knobs tests need to reach
// behind the HTTP surface, such as admin promotion.
type testEnv struct {
	Client *authapi.Client

	// adminIDs is shared with the token service; adding a user id here
	// grants the audit:read scope on tokens issued afterwards.
	adminIDs map[string]struct{}

	audit *service.AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())

	accessSigner, err := jwtx.NewHS256([]byte(testAccessSecret), testIssuer, jwtx.UseAccess)
	require.NoError(t, err)
	refreshSigner, err := jwtx.NewHS256([]byte(testRefreshSecret), testIssuer, jwtx.UseRefresh)
	require.NoError(t, err)
	fieldCipher, err := cryptox.NewFieldCipher(testFieldKey)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	adminIDs := make(map[string]struct{})
	auditService := service.NewAuditService(st, fieldCipher, logger, 0)
	challengeService := &service.ChallengeService{Store: st}
	tokenService := &service.TokenService{
		Store:         st,
		AccessSigner:  accessSigner,
		RefreshSigner: refreshSigner,
		AdminUserIDs:  adminIDs,
	}
	authService := &service.AuthService{
		Store:      st,
		Challenges: challengeService,
		Tokens:     tokenService,
		Audit:      auditService,
	}

	router := httpapi.NewRouter(accessSigner, "e2e", st, logger)
	router.AuthService = authService
	router.ChallengeService = challengeService
	router.AuditService = auditService
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		auditService.Close()
		_ = st.Close()
	})

	return &testEnv{
		Client:   authapi.NewClient(server.URL),
		adminIDs: adminIDs,
		audit:    auditService,
	}
}

// grantAdmin marks a user as an admin. Only tokens issued after this call
// carry the audit:read scope.
func (env *testEnv) grantAdmin(userID string) {
	env.adminIDs[userID] = struct{}{}
}

// device holds an ECDSA keypair standing in for a client installation.
type device struct {
	id     string
	key    *ecdsa.PrivateKey
	pubHex string
}

func newDevice(t *testing.T, id string) *device {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	pub := append([]byte{0x04}, cryptox.EncodeRawSignature(key.PublicKey.X, key.PublicKey.Y)...)
	return &device{id: id, key: key, pubHex: hex.EncodeToString(pub)}
}

// sign produces a fixed-length r||s signature over SHA-256 of the message,
// matching what a real client device sends.
func (d *device) sign(t *testing.T, message string) string {
	t.Helper()

	digest := sha256.Sum256([]byte(message))
	r, s, err := ecdsa.Sign(rand.Reader, d.key, digest[:])
	require.NoError(t, err)
	return hex.EncodeToString(cryptox.EncodeRawSignature(r, s))
}

// register enrolls the device and returns its first token pair.
func (env *testEnv) register(t *testing.T, d *device) *authapi.TokenResponse {
	t.Helper()

	tokens, err := env.Client.Register(context.Background(), authapi.RegisterRequest{
		DeviceID:  d.id,
		PublicKey: d.pubHex,
		Platform:  "ios",
	})
	require.NoError(t, err)
	assertTokenResponse(t, tokens)
	return tokens
}

// verify runs the full challenge/sign/verify round trip for the device.
func (env *testEnv) verify(t *testing.T, d *device) *authapi.TokenResponse {
	t.Helper()
	ctx := context.Background()

	challenge, err := env.Client.Challenge(ctx, authapi.ChallengeRequest{DeviceID: d.id})
	require.NoError(t, err)
	require.NotEmpty(t, challenge.Challenge)

	tokens, err := env.Client.Verify(ctx, authapi.VerifyRequest{
		DeviceID:  d.id,
		Challenge: challenge.Challenge,
		Signature: d.sign(t, challenge.Challenge),
		PublicKey: d.pubHex,
	})
	require.NoError(t, err)
	assertTokenResponse(t, tokens)
	return tokens
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authapi.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType)
	require.Positive(t, resp.ExpiresIn)
}

// assertAPIError checks that err is an API error with the given HTTP status.
func assertAPIError(t *testing.T, err error, wantStatus int) *authapi.APIError {
	t.Helper()
	require.Error(t, err)

	var apiErr *authapi.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, wantStatus, apiErr.StatusCode, "unexpected status, code=%s: %s", apiErr.Code, apiErr.Description)
	return apiErr
}

// waitForAuditEvents polls the audit log endpoint until at least n events
// match the query, tolerating the asynchronous audit pipeline.
func waitForAuditEvents(t *testing.T, env *testEnv, accessToken string, n int) *authapi.AuditLogsResponse {
	t.Helper()
	ctx := context.Background()

	deadline := time.Now().Add(5 * time.Second)
	seen := 0
	for {
		resp, err := env.Client.AuditLogs(ctx, accessToken, nil)
		if err == nil {
			if len(resp.Events) >= n {
				return resp
			}
			seen = len(resp.Events)
		}
		if time.Now().After(deadline) {
			require.NoError(t, err)
			require.Fail(t, "timed out waiting for audit events", "wanted %d, got %d", n, seen)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
