// Package remote is a typed client for the Smart Supply REST API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smartsupply/agent/internal/monitoring"
	"github.com/smartsupply/agent/pkg/logger"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 10 * time.Second
	maxResponseBytes  = 32 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the Smart Supply API. It is safe for concurrent use.
type Client struct {
	http       *http.Client
	baseURL    *url.URL
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	log        *zap.Logger

	mu    sync.RWMutex
	token string
}

// envelope is the JSON wrapper every API response uses.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewClient validates cfg and constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote: invalid base URL %q", raw)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "smartsupply-agent"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("remote")
	}

	return &Client{
		http:       httpClient,
		baseURL:    base,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		userAgent:  cfg.UserAgent,
		log:        log,
	}, nil
}

// SetToken sets the bearer token sent with every request. An empty token
// removes it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// HasToken reports whether a bearer token is set.
func (c *Client) HasToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// get performs a GET and decodes the envelope's data into out. out may be
// nil when only success matters.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	start := time.Now()
	env, err := c.do(ctx, op, http.MethodGet, path, query)
	if err != nil {
		monitoring.RecordRemoteRequest(op, requestResult(err), time.Since(start))
		return err
	}
	monitoring.RecordRemoteRequest(op, "success", time.Since(start))
	if !env.Success {
		if env.Message != "" {
			return fmt.Errorf("%s: %w: %s", op, ErrUnsuccessful, env.Message)
		}
		return fmt.Errorf("%s: %w", op, ErrUnsuccessful)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values) (*envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target := c.resolve(path, query)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.log.Debug("retrying request",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		env, err := c.attempt(ctx, op, method, target)
		if err == nil {
			return env, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr *NetworkError
		if method != http.MethodGet || !errors.As(err, &netErr) || !netErr.Temporary() {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, op, method, target string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, decodeErr)
	}
	return &env, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// backoff doubles the delay per attempt with +/-25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.retryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	jitter := delay * 0.25
	return time.Duration(delay + (rand.Float64()*2-1)*jitter)
}

func requestResult(err error) string {
	var netErr *NetworkError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &netErr) && netErr.StatusCode != 0:
		return "http_error"
	default:
		return "network_error"
	}
}
