package portalsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Client talks to a portal instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a Client with a 10 second request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSession wraps an access token obtained elsewhere.
func (c *Client) NewSession(accessToken string, expiresAt time.Time) *Session {
	return &Session{client: c, accessToken: accessToken, expiresAt: expiresAt}
}

// RequestCode asks the portal to email a fresh verification code.
func (c *Client) RequestCode(ctx context.Context, req CodeRequest) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/portal/code", "", req)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// ResendCode re-sends a code for a pending challenge, subject to the
// cooldown and hourly cap.
func (c *Client) ResendCode(ctx context.Context, email string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/portal/code/resend", "", ResendRequest{Email: email})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// Verify redeems a code and authorizes the device. The returned Session
// belongs to the guest.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, *Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/portal/verify", "", req)
	if err != nil {
		return nil, nil, err
	}

	var out VerifyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, nil, err
	}
	return &out, c.NewSession(out.AccessToken, out.ExpiresAt), nil
}

// AdminLogin signs an administrator in. totp may be empty when the account
// has no second factor.
func (c *Client) AdminLogin(ctx context.Context, email, password, totp string) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/admin/login", "", AdminLoginRequest{
		Email:    email,
		Password: password,
		TOTP:     totp,
	})
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	s := c.NewSession(out.AccessToken, out.ExpiresAt)
	s.userID = out.UserID
	return s, nil
}

// GetLiveness checks if the service is alive.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness checks if the service can reach its database.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
