package stockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/maraudr/console/internal/metrics"
)

// TokenSource supplies the bearer token for backend calls. An empty token
// means the operator is not authenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken is a fixed bearer token, used by the CLI.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// QuantityRoute selects which backend route carries quantity-only updates.
// Both exist because the backend migrated between them.
type QuantityRoute string

const (
	// QuantityRouteScoped is PUT /item/update-quantity/{id} with the association in the body.
	QuantityRouteScoped QuantityRoute = "scoped"
	// QuantityRouteLegacy is PUT /item/{id} with only the quantity.
	QuantityRouteLegacy QuantityRoute = "legacy"
)

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 15 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 8 << 20

// Options configures a Client.
type Options struct {
	Routes        Routes
	Tokens        TokenSource
	QuantityRoute QuantityRoute
	HTTPClient    *http.Client // defaults to a client with a cookie jar
	Timeout       time.Duration
	Metrics       *metrics.Collector
	Logger        *slog.Logger
}

// Client talks to the stock backend. It performs no retries: each call is a
// single attempt.
type Client struct {
	routes        Routes
	tokens        TokenSource
	quantityRoute QuantityRoute
	http          *http.Client
	metrics       *metrics.Collector
	log           *slog.Logger

	stockIDs singleflight.Group
}

// New creates a stock backend client.
func New(opts Options) (*Client, error) {
	if opts.Routes.base == nil {
		return nil, errors.New("stockapi: routes not configured")
	}
	if opts.Tokens == nil {
		return nil, errors.New("stockapi: token source required")
	}

	switch opts.QuantityRoute {
	case "":
		opts.QuantityRoute = QuantityRouteScoped
	case QuantityRouteScoped, QuantityRouteLegacy:
	default:
		return nil, fmt.Errorf("stockapi: unknown quantity route %q", opts.QuantityRoute)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Jar: jar, Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		routes:        opts.Routes,
		tokens:        opts.Tokens,
		quantityRoute: opts.QuantityRoute,
		http:          httpClient,
		metrics:       opts.Metrics,
		log:           logger,
	}, nil
}

// QuantityRoute reports the configured quantity update route.
func (c *Client) QuantityRoute() QuantityRoute {
	return c.quantityRoute
}

// do performs one authenticated request and returns the response body of a
// 2xx answer. Any other outcome is an *Error.
func (c *Client) do(ctx context.Context, op, method, url string, body any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		c.metrics.ObserveRequest("stock", op, "no_token", 0)
		return nil, &Error{Op: op, Kind: ErrAuthenticationMissing, Err: err}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest("stock", op, "network", time.Since(start))
		c.log.Warn("stock backend unreachable", "op", op, "error", err)
		return nil, &Error{Op: op, Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.metrics.ObserveRequest("stock", op, "network", time.Since(start))
		return nil, &Error{Op: op, Status: resp.StatusCode, Kind: ErrNetwork, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.metrics.ObserveRequest("stock", op, "ok", time.Since(start))
		c.log.Debug("stock backend call", "op", op, "method", method, "status", resp.StatusCode, "duration", time.Since(start).Round(time.Millisecond))
		return data, nil
	}

	apiErr := ResponseError(op, resp.StatusCode, data)
	c.metrics.ObserveRequest("stock", op, Outcome(apiErr.Kind), time.Since(start))
	if apiErr.Status >= 500 {
		c.log.Error("stock backend failure", "op", op, "status", apiErr.Status, "message", apiErr.Message)
	}
	return nil, apiErr
}

// decodeID reads the identifier out of a creation response. The backend
// answers {"id": ...}, {"stockId": ...} or a bare JSON string.
func decodeID(body []byte) (string, error) {
	var obj struct {
		ID      flexString `json:"id"`
		StockID flexString `json:"stockId"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if obj.ID != "" {
			return string(obj.ID), nil
		}
		if obj.StockID != "" {
			return string(obj.StockID), nil
		}
	}

	var s flexString
	if err := json.Unmarshal(body, &s); err == nil && s != "" {
		return string(s), nil
	}
	return "", fmt.Errorf("response carries no identifier: %q", truncate(body, 120))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
