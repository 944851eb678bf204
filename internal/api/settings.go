package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// Letterhead is the document header/footer configuration applied to
// generated documents.
type Letterhead struct {
	CompanyName string  `json:"company_name,omitempty"`
	HeaderText  string  `json:"header_text,omitempty"`
	FooterText  string  `json:"footer_text,omitempty"`
	LogoURL     string  `json:"logo_url,omitempty"`
	MarginTop   float64 `json:"margin_top,omitempty"`
	MarginBot   float64 `json:"margin_bottom,omitempty"`
}

// StyleMap maps document elements to named styles.
type StyleMap map[string]string

// GetLetterhead returns the account's letterhead configuration.
func (c *Client) GetLetterhead(ctx context.Context) (*Letterhead, error) {
	var lh Letterhead
	if err := c.do(ctx, http.MethodGet, "/settings/letterhead", nil, &lh); err != nil {
		return nil, err
	}
	return &lh, nil
}

// UpdateLetterhead replaces the letterhead configuration.
func (c *Client) UpdateLetterhead(ctx context.Context, lh *Letterhead) error {
	return c.do(ctx, http.MethodPut, "/settings/letterhead", lh, nil)
}

// GetStyleMap returns the account's style map.
func (c *Client) GetStyleMap(ctx context.Context) (StyleMap, error) {
	var styles StyleMap
	if err := c.do(ctx, http.MethodGet, "/settings/styles", nil, &styles); err != nil {
		return nil, err
	}
	return styles, nil
}

// UpdateStyleMap replaces the style map.
func (c *Client) UpdateStyleMap(ctx context.Context, styles StyleMap) error {
	return c.do(ctx, http.MethodPut, "/settings/styles", styles, nil)
}

// UploadLogo uploads a logo image as a multipart form and returns its
// hosted URL.
func (c *Client) UploadLogo(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("logo", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to read logo: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	access, err := c.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/settings/logo", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		LogoURL string `json:"logo_url"`
	}
	if err := decodeResponse(resp, &result); err != nil {
		return "", err
	}
	return result.LogoURL, nil
}
