// Package http holds the timeout-bound client every provider adapter uses.
package http

import (
	"net/http"
	"time"
)

// Doer is the one method adapters need; tests pass httptest-backed clients.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient *http.Client
}

// NewClient returns a client whose requests are bounded by timeout. A zero
// timeout leaves requests bounded only by their context.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Wrap adapts an existing *http.Client, such as httptest.Server.Client().
func Wrap(c *http.Client) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{httpClient: c}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
