package backend

import (
	"context"
	"net/http"

	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// Credentials carries a login request
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration carries a register request
type Registration struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// Me performs the identity check with the bearer credential
func (c *Client) Me(ctx context.Context, token string) (syncdomain.User, error) {
	var user syncdomain.User
	err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &user)
	return user, err
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, creds Credentials) (*syncdomain.AuthGrant, error) {
	var result syncdomain.AuthGrant
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates a new account and returns its first token
func (c *Client) Register(ctx context.Context, reg Registration) (*syncdomain.AuthGrant, error) {
	var result syncdomain.AuthGrant
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", reg, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Refresh exchanges a near-expiry token for a fresh one
func (c *Client) Refresh(ctx context.Context, token string) (*syncdomain.AuthGrant, error) {
	var result syncdomain.AuthGrant
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout invalidates the token server-side. Best-effort: the local
// credential is destroyed regardless of the outcome.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// Mount re-announces this device to the backend. Used once when the
// identity route unexpectedly returns 404 before escalating the failure.
func (c *Client) Mount(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/mount", token, map[string]string{
		"device_id": c.deviceID,
	}, nil)
}
