package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dshills/versedeck/internal/plugin"
)

// APIError is a failed admin request as reported by the server.
type APIError struct {
	StatusCode int
	ErrorResponse
}

func (e *APIError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s (%s)", e.ErrorResponse.Error, e.Hint)
	}
	return e.ErrorResponse.Error
}

// Client talks to a running admin API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at addr, either host:port or a
// full URL.
func NewClient(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Statuses lists every plugin.
func (c *Client) Statuses(ctx context.Context) ([]plugin.Status, error) {
	var out []plugin.Status
	err := c.do(ctx, http.MethodGet, "/plugins", &out)
	return out, err
}

// Status returns one plugin.
func (c *Client) Status(ctx context.Context, name string) (plugin.Status, error) {
	var out plugin.Status
	err := c.do(ctx, http.MethodGet, "/plugins/"+url.PathEscape(name), &out)
	return out, err
}

// Load loads name and returns its new status.
func (c *Client) Load(ctx context.Context, name string) (plugin.Status, error) {
	return c.transition(ctx, name, "load")
}

// Unload unloads name and returns its new status.
func (c *Client) Unload(ctx context.Context, name string) (plugin.Status, error) {
	return c.transition(ctx, name, "unload")
}

// Reload reloads name and returns its new status.
func (c *Client) Reload(ctx context.Context, name string) (plugin.Status, error) {
	return c.transition(ctx, name, "reload")
}

func (c *Client) transition(ctx context.Context, name, op string) (plugin.Status, error) {
	var out plugin.Status
	err := c.do(ctx, http.MethodPost, "/plugins/"+url.PathEscape(name)+"/"+op, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("admin API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr.ErrorResponse); err != nil || apiErr.ErrorResponse.Error == "" {
			apiErr.ErrorResponse.Error = resp.Status
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("admin API: decoding response: %w", err)
	}
	return nil
}
