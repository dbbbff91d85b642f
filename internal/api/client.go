package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every request, including reading the response body.
const DefaultTimeout = 10 * time.Second

// DefaultPaginationTimeout bounds a full cursor walk when the context has no deadline.
const DefaultPaginationTimeout = 2 * time.Minute

// Signer produces authentication headers for a request.
// *auth.Credentials satisfies this interface.
type Signer interface {
	SignRequest(method, path, body string) (map[string]string, error)
}

// Client provides access to the Robinhood Crypto REST API.
// It holds no mutable state and is safe to share across trading pairs.
type Client struct {
	baseURL    string
	signer     Signer
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, signer Signer, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:    slog.Default(),
		userAgent: "rh-crypto-trader",
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

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}
