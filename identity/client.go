package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/access-control-plane/authorization"
	"github.com/upb/access-control-plane/config"
	"go.uber.org/zap"
)

// ErrBackendUnavailable indicates the identity backend could not be reached
// or answered with a non-success status. Callers treat this as a transient
// failure and fall back to deny-all; it must never surface as a process
// failure or a false grant.
var ErrBackendUnavailable = errors.New("identity: backend unavailable")

// Client queries the external identity backend for the roles granted to a
// principal. Every query runs with the caller's own bearer credential so the
// backend applies its own authorization to the lookup.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an identity backend client from configuration.
func NewClient(cfg config.IdentityConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type privilegeQueryRequest struct {
	Username string `json:"username"`
}

type privilegeQueryResponse struct {
	Roles authorization.RoleSet `json:"roles"`
}

// QueryPrivileges implements authorization.PrivilegeSource.
func (c *Client) QueryPrivileges(ctx context.Context, principal authorization.Principal) (authorization.RoleSet, error) {
	body, err := json.Marshal(privilegeQueryRequest{Username: principal.Username})
	if err != nil {
		return nil, fmt.Errorf("identity: encode privilege query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/privileges/_query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("identity: build privilege query: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The caller's credential, never a service identity.
	req.Header.Set("Authorization", "Bearer "+principal.Token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrBackendUnavailable, resp.StatusCode)
	}

	var parsed privilegeQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrBackendUnavailable, err)
	}

	c.logger.Debug("privilege query completed",
		zap.String("username", principal.Username),
		zap.Int("roles", len(parsed.Roles)),
		zap.Duration("elapsed", time.Since(start)))

	return parsed.Roles, nil
}
