// Package fetch retrieves response documents from a live SensorThings
// service.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/staconform/internal/jsondoc"
)

var (
	// ErrRequest is wrapped by errors sending a request.
	ErrRequest = errors.New("request failed")

	// ErrBadResponse is wrapped by errors reading or decoding a response.
	ErrBadResponse = errors.New("bad response")
)

var tracer = otel.Tracer("staconform/fetch")

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client issues GET requests relative to a service root such as
// http://localhost:8080/FROST-Server/v1.1.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request diagnostics. A nil logger keeps
// the default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse service url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("service url %q must be http or https", baseURL)
	}

	c := &Client{
		base: base,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve turns a request such as /Things?$top=2 or an absolute next link
// into a URL. Relative requests, with or without a leading slash, are
// resolved below the service root.
func (c *Client) Resolve(request string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(request, "/"))
	if err != nil {
		return "", fmt.Errorf("parse request %q: %w", request, err)
	}
	ref.RawQuery = strings.ReplaceAll(ref.RawQuery, " ", "%20")
	return c.base.ResolveReference(ref).String(), nil
}

// Get fetches and parses the document for request.
func (c *Client) Get(ctx context.Context, request string) (jsondoc.Value, error) {
	endpoint, err := c.Resolve(request)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "sta-get")
	defer span.End()
	span.SetAttributes(attribute.String("sta.url", endpoint))

	doc, err := c.get(ctx, endpoint)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return doc, err
}

// FetchPage fetches the page behind a next link, so a Client can drive a
// compare.Pages list.
func (c *Client) FetchPage(ctx context.Context, link string) (jsondoc.Value, error) {
	return c.Get(ctx, link)
}

func (c *Client) get(ctx context.Context, endpoint string) (jsondoc.Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %s (%w)", err.Error(), ErrRequest)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %s (%w)", err.Error(), ErrRequest)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %s (%w)", err.Error(), ErrBadResponse)
	}
	c.logger.Debug("fetched", "url", endpoint, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	doc, err := jsondoc.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %s (%w)", endpoint, err.Error(), ErrBadResponse)
	}
	return doc, nil
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
