package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin JSON client for the authentication service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client with a sane default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Challenge requests a fresh signing challenge.
func (c *Client) Challenge(ctx context.Context, req ChallengeRequest) (*ChallengeResponse, error) {
	var out ChallengeResponse
	if err := c.post(ctx, "/v1/auth/challenge", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register enrolls a new device and returns its first token pair.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.post(ctx, "/v1/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify performs the signature-only login.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.post(ctx, "/v1/auth/verify", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPassword enrolls the password second factor and returns the
// username credentials were stored under. Requires a bearer token.
func (c *Client) SetPassword(ctx context.Context, accessToken string, req PasswordRequest) (*PasswordResponse, error) {
	var out PasswordResponse
	if err := c.post(ctx, "/v1/auth/password", accessToken, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login performs the hybrid signature+password login.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.post(ctx, "/v1/auth/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates a token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.post(ctx, "/v1/auth/refresh", "", RefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout deletes the bearer token's session.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.post(ctx, "/v1/auth/logout", accessToken, struct{}{}, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context, accessToken string) (*UserResponse, error) {
	var out UserResponse
	if err := c.get(ctx, "/v1/auth/me", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditLogs lists decrypted audit events. Requires the audit:read scope.
func (c *Client) AuditLogs(ctx context.Context, accessToken string, query url.Values) (*AuditLogsResponse, error) {
	var out AuditLogsResponse
	if err := c.get(ctx, "/v1/audit/logs", accessToken, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditStats returns per-action aggregates. Requires the audit:read scope.
func (c *Client) AuditStats(ctx context.Context, accessToken string, windowDays int) (*AuditStatsResponse, error) {
	query := url.Values{}
	if windowDays > 0 {
		query.Set("days", fmt.Sprintf("%d", windowDays))
	}
	var out AuditStatsResponse
	if err := c.get(ctx, "/v1/audit/stats", accessToken, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Livez checks the liveness probe.
func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.get(ctx, "/livez", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path, accessToken string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path, accessToken string, query url.Values, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := parseErrorResponse(resp, respBody); err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
