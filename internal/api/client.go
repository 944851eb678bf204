// Package api is the typed client for the compliance assistant REST
// backend: authentication, conversations, billing, settings, and storage
// provider linking. The backend is an external collaborator; this package
// only speaks its JSON surface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/compliance-assistant/client/internal/model"
	"github.com/compliance-assistant/client/pkg/logger"
)

// refreshLeeway is how close to expiry an access token may get before a
// proactive refresh is attempted.
const refreshLeeway = 30 * time.Second

// TokenStore supplies and persists the bearer credentials.
type TokenStore interface {
	Tokens(ctx context.Context) (access, refresh string, err error)
	SaveTokens(ctx context.Context, access, refresh string) error
	ClearTokens(ctx context.Context) error
}

// APIError is a structured error response from the backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap maps plan-limit rejections onto the shared sentinel so callers
// can branch with errors.Is.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusPaymentRequired || e.Code == "subscription_required" {
		return model.ErrUpgradeRequired
	}
	return nil
}

// Config holds configuration for the REST client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenStore
	Logger  *logger.Logger
}

// Client is the REST API client. A 401 triggers one transparent
// refresh-and-retry before surfacing model.ErrSessionExpired.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
	log     *logger.Logger
	cache   *gocache.Cache

	// refreshMu serializes token refreshes so concurrent calls do not
	// burn the refresh token twice.
	refreshMu sync.Mutex
}

// NewClient creates a new REST client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  cfg.Tokens,
		log:     cfg.Logger,
		cache:   gocache.New(30*time.Second, time.Minute),
	}
}

// AccessToken returns a currently valid access token, refreshing
// proactively when the stored one is expired or about to expire. Used by
// the session client to build its dial URL.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	access, refresh, err := c.tokens.Tokens(ctx)
	if err != nil {
		return "", err
	}
	if access == "" {
		return "", model.ErrNoCredential
	}
	if !tokenNearExpiry(access) {
		return access, nil
	}
	if refresh == "" {
		return "", model.ErrSessionExpired
	}
	return c.refreshTokens(ctx, refresh)
}

// do performs an authenticated JSON request with one refresh-and-retry
// on 401.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	access, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	retried := false
	for {
		err := c.doOnce(ctx, method, path, access, body, out)
		apiErr, ok := err.(*APIError)
		if !ok || apiErr.Status != http.StatusUnauthorized || retried {
			return err
		}

		_, refresh, terr := c.tokens.Tokens(ctx)
		if terr != nil {
			return terr
		}
		if refresh == "" {
			return model.ErrSessionExpired
		}
		access, err = c.refreshTokens(ctx, refresh)
		if err != nil {
			return err
		}
		retried = true
	}
}

// doUnauthenticated performs a JSON request without bearer credentials.
// Used for login, signup and refresh itself.
func (c *Client) doUnauthenticated(ctx context.Context, method, path string, body, out any) error {
	return c.doOnce(ctx, method, path, "", body, out)
}

func (c *Client) doOnce(ctx context.Context, method, path, access string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// refreshTokens exchanges the refresh token for a new pair and persists
// it. Failure invalidates the stored credentials.
func (c *Client) refreshTokens(ctx context.Context, refresh string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	access, stored, err := c.tokens.Tokens(ctx)
	if err != nil {
		return "", err
	}
	if access != "" && stored != refresh {
		return access, nil
	}

	var result tokenPair
	err = c.doUnauthenticated(ctx, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": refresh}, &result)
	if err != nil {
		c.log.Warn("token refresh failed", zap.Error(err))
		if cerr := c.tokens.ClearTokens(ctx); cerr != nil {
			c.log.Warn("failed to clear tokens", zap.Error(cerr))
		}
		return "", model.ErrSessionExpired
	}

	if err := c.tokens.SaveTokens(ctx, result.AccessToken, result.RefreshToken); err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// tokenNearExpiry inspects the JWT exp claim without verifying the
// signature; the client holds no signing key, and the check only decides
// whether to refresh early.
func tokenNearExpiry(access string) bool {
	token, _, err := jwt.NewParser().ParseUnverified(access, jwt.MapClaims{})
	if err != nil {
		// Opaque tokens can't be inspected; let the server decide.
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < refreshLeeway
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
