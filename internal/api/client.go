package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client provides access to the usage statistics REST API.
type Client struct {
	baseURL    string
	pathPrefix string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries    int
	retryBackoff  time.Duration
	healthTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pathPrefix: "/api",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:        slog.Default(),
		maxRetries:    3,
		retryBackoff:  time.Second,
		healthTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithPathPrefix sets the fixed prefix all endpoint paths are served under.
func WithPathPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.pathPrefix = strings.TrimRight(prefix, "/")
	}
}

// WithHealthTimeout sets the per-request timeout for health probes.
func WithHealthTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.healthTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
