package spaceapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("unexpected http status")

const maxBody = 1 << 20

// Client performs on-demand fetches of the SpaceAPI endpoint.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{url: strings.TrimSpace(url), http: &http.Client{Timeout: timeout}}
}

// Fetch GETs the endpoint and decodes the document. It never touches any cache.
func (c *Client) Fetch(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return Status{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return Status{}, fmt.Errorf("HTTP error: %w: %d", ErrStatus, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Status{}, fmt.Errorf("HTTP error: read body: %w", err)
	}
	return Decode(b)
}
