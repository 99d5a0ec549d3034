// Package badge renders shareable activity badges through an external
// image service.
package badge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single render call end to end.
const DefaultTimeout = 10 * time.Second

// Client fetches badge images from a shields-style renderer. The renderer
// takes label and message as path segments and answers with an SVG.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the renderer at baseURL, e.g.
// "https://img.shields.io/badge".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Render fetches the badge image for a label/message pair and returns the
// raw bytes plus the renderer's content type. The bytes are forwarded to
// the caller unmodified.
func (c *Client) Render(ctx context.Context, label, message string) ([]byte, string, error) {
	// shields path segments escape spaces as %20 and dashes as "--"
	target := fmt.Sprintf("%s/%s-%s-blue",
		c.baseURL,
		url.PathEscape(escapeSegment(label)),
		url.PathEscape(escapeSegment(message)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("badge: building render request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("badge: calling renderer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("badge: renderer returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("badge: reading renderer response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/svg+xml"
	}

	return body, contentType, nil
}

func escapeSegment(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '-':
			out = append(out, '-', '-')
		case '_':
			out = append(out, '_', '_')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
