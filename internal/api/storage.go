package api

import (
	"context"
	"net/http"
	"net/url"
)

// StorageProvider is a linkable document storage destination.
type StorageProvider struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Linked bool   `json:"linked"`
}

// ListStorageProviders returns the supported providers and their link
// status.
func (c *Client) ListStorageProviders(ctx context.Context) ([]StorageProvider, error) {
	var result struct {
		Providers []StorageProvider `json:"providers"`
	}
	if err := c.do(ctx, http.MethodGet, "/storage/providers", nil, &result); err != nil {
		return nil, err
	}
	return result.Providers, nil
}

// StartStorageLink begins the OAuth flow for a provider and returns the
// authorize URL the user must open. redirectURI is the local callback
// that receives the authorization code.
func (c *Client) StartStorageLink(ctx context.Context, provider, redirectURI string) (string, error) {
	var result struct {
		AuthorizeURL string `json:"authorize_url"`
	}
	err := c.do(ctx, http.MethodPost, "/storage/link",
		map[string]string{"provider": provider, "redirect_uri": redirectURI}, &result)
	if err != nil {
		return "", err
	}
	return result.AuthorizeURL, nil
}

// CompleteStorageLink finishes the OAuth flow with the authorization
// code captured by the local callback.
func (c *Client) CompleteStorageLink(ctx context.Context, provider, code string) error {
	return c.do(ctx, http.MethodPost, "/storage/link/complete",
		map[string]string{"provider": provider, "code": code}, nil)
}

// UnlinkStorage removes a provider link.
func (c *Client) UnlinkStorage(ctx context.Context, provider string) error {
	return c.do(ctx, http.MethodDelete, "/storage/link/"+url.PathEscape(provider), nil, nil)
}
