// Package api is the client for the remote coffee service. Every call that
// needs the session cookie goes through the same jar, so the credential issued
// by /login travels with /me, /order and /logout.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

var (
	ErrUnexpectedStatus   = errors.New("api: unexpected response status")
	ErrUnexpectedResponse = errors.New("api: unexpected response body")
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("api: create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}, nil
}

// Coffees fetches the full catalog.
func (c *Client) Coffees(ctx context.Context) ([]Coffee, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/coffees", nil)
	if err != nil {
		return nil, err
	}
	if !success(status) {
		return nil, fmt.Errorf("%w: GET /coffees returned %d: %s", ErrUnexpectedStatus, status, strings.TrimSpace(string(body)))
	}

	var coffees []Coffee
	if err := json.Unmarshal(body, &coffees); err != nil {
		return nil, fmt.Errorf("%w: decode coffees: %v", ErrUnexpectedResponse, err)
	}
	return coffees, nil
}

// Me asks the service who the current session belongs to.
func (c *Client) Me(ctx context.Context) (Result[User], error) {
	status, body, err := c.do(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return Result[User]{}, err
	}
	return decodeUser(status, body), nil
}

func (c *Client) Login(ctx context.Context, creds Credentials) (Result[User], error) {
	status, body, err := c.do(ctx, http.MethodPost, "/login", creds)
	if err != nil {
		return Result[User]{}, err
	}
	return decodeUser(status, body), nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (Result[User], error) {
	status, body, err := c.do(ctx, http.MethodPost, "/register", reg)
	if err != nil {
		return Result[User]{}, err
	}
	return decodeUser(status, body), nil
}

// Logout ends the server-side session. The body of the acknowledgement is not used.
func (c *Client) Logout(ctx context.Context) error {
	status, body, err := c.do(ctx, http.MethodPost, "/logout", nil)
	if err != nil {
		return err
	}
	if !success(status) {
		return fmt.Errorf("%w: POST /logout returned %d: %s", ErrUnexpectedStatus, status, strings.TrimSpace(string(body)))
	}
	return nil
}

// CreateOrder submits one order. Any 2xx answer is a success; the receipt is
// decoded on a best-effort basis.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Result[OrderReceipt], error) {
	status, body, err := c.do(ctx, http.MethodPost, "/order", req)
	if err != nil {
		return Result[OrderReceipt]{}, err
	}
	if !success(status) {
		return Fail[OrderReceipt](rejectionMessage(body)), nil
	}

	var receipt OrderReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		log.Debug().Err(err).Msg("api: order receipt is not JSON, ignoring")
	}
	return Ok(receipt), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("api: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("api: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Str("path", path).Msg("api: request failed")
		return 0, nil, fmt.Errorf("api: send %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("api: read %s %s response: %w", method, path, err)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("api: request completed")

	return resp.StatusCode, body, nil
}

// decodeUser turns a {status, user, error} envelope into a Result. Plain-text
// error bodies become the rejection message verbatim.
func decodeUser(status int, body []byte) Result[User] {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Fail[User](strings.TrimSpace(string(body)))
	}
	if success(status) && env.Status == "ok" {
		var user User
		if env.User != nil {
			user = *env.User
		}
		return Ok(user)
	}
	return Fail[User](env.Error)
}

func rejectionMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		return env.Error
	}
	return strings.TrimSpace(string(body))
}

func success(status int) bool {
	return status >= 200 && status < 300
}
