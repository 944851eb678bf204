package api

import (
	"context"
	"net/http"
)

// User is the authenticated account profile.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Company   string `json:"company,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AuthResult is the response to login and signup.
type AuthResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Login authenticates with email and password and persists the returned
// token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var result AuthResult
	err := c.doUnauthenticated(ctx, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &result)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.SaveTokens(ctx, result.AccessToken, result.RefreshToken); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// Signup registers a new account and persists the returned token pair.
func (c *Client) Signup(ctx context.Context, email, password, company string) (*User, error) {
	var result AuthResult
	err := c.doUnauthenticated(ctx, http.MethodPost, "/auth/signup",
		map[string]string{"email": email, "password": password, "company": company}, &result)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.SaveTokens(ctx, result.AccessToken, result.RefreshToken); err != nil {
		return nil, err
	}
	return &result.User, nil
}

// Logout invalidates the server-side session and clears local
// credentials. Local credentials are cleared even when the server call
// fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if cerr := c.tokens.ClearTokens(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
