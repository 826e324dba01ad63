// Package twse fetches monthly daily-trading data for listed securities from
// the Taiwan Stock Exchange STOCK_DAY report.
package twse

import (
	"net/http"
	"net/url"
)

const (
	// Name identifies the provider in errors and logs.
	Name = "TWSE"

	baseURL = "https://www.twse.com.tw"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=twse_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the TWSE exchange report API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
}

// ClientOption is a configuration option for the TWSE client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new TWSE client.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	// The report endpoint serves HTML unless asked for JSON.
	c.query.Set("response", "json")
	for _, option := range options {
		option(c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string { return Name }
