// Package assocapi is the client of the association backend. The console uses
// it to log operators in and to list the associations they belong to.
package assocapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maraudr/console/internal/metrics"
	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/stockapi"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// Client talks to the association backend. Errors use the stockapi taxonomy.
type Client struct {
	base    *url.URL
	http    *http.Client
	metrics *metrics.Collector
	log     *slog.Logger
}

// New creates an association backend client.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing association backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("association backend url %q must be absolute", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = stockapi.DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{base: u, http: httpClient, metrics: opts.Metrics, log: logger}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse covers both token field names the backend has used.
type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
}

// Login exchanges operator credentials for a backend bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	const op = "login"
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", &stockapi.Error{Op: op, Message: "email and password required", Kind: stockapi.ErrValidation}
	}

	body, err := c.do(ctx, op, http.MethodPost, "", "/auth/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &stockapi.Error{Op: op, Kind: stockapi.ErrUnknown, Err: err}
	}
	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	if token == "" {
		return "", &stockapi.Error{Op: op, Message: "login response carries no token", Kind: stockapi.ErrUnknown}
	}
	return token, nil
}

// Memberships lists the associations the token's owner belongs to.
func (c *Client) Memberships(ctx context.Context, token string) ([]model.Association, error) {
	const op = "memberships"
	if token == "" {
		return nil, &stockapi.Error{Op: op, Kind: stockapi.ErrAuthenticationMissing}
	}

	body, err := c.do(ctx, op, http.MethodGet, token, "/association/membership", nil)
	if err != nil {
		return nil, err
	}

	var list []model.Association
	if err := json.Unmarshal(body, &list); err != nil {
		// Some deployments answer with a single association object.
		var one model.Association
		if err1 := json.Unmarshal(body, &one); err1 != nil || one.ID == "" {
			return nil, &stockapi.Error{Op: op, Kind: stockapi.ErrUnknown, Err: err}
		}
		list = []model.Association{one}
	}
	return list, nil
}

func (c *Client) do(ctx context.Context, op, method, token, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest("association", op, "network", time.Since(start))
		c.log.Warn("association backend unreachable", "op", op, "error", err)
		return nil, &stockapi.Error{Op: op, Kind: stockapi.ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &stockapi.Error{Op: op, Status: resp.StatusCode, Kind: stockapi.ErrNetwork, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.metrics.ObserveRequest("association", op, "ok", time.Since(start))
		return data, nil
	}

	apiErr := stockapi.ResponseError(op, resp.StatusCode, data)
	c.metrics.ObserveRequest("association", op, stockapi.Outcome(apiErr), time.Since(start))
	return nil, apiErr
}

// IsInvalidCredentials reports whether err is the backend refusing a login.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, stockapi.ErrAuthenticationMissing) || errors.Is(err, stockapi.ErrValidation)
}
