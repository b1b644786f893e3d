package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Defaults applied by New.
const (
	DefaultTimeout          = 15 * time.Second
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second

	// maxResponseBytes caps how much of a reply is read.
	maxResponseBytes = 8 << 20
)

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:9090/api.
	BaseURL string

	// Timeout bounds each request when HTTPClient is nil.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before a probe.
	ResetTimeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Response is a successful reply with its metadata.
type Response struct {
	Status int
	Header http.Header
	Data   json.RawMessage
}

// User is the identity returned by Login.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResult is the body of a successful POST /login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RealtimeConfig is the body of GET /realtime/config.
type RealtimeConfig struct {
	MQTTEnabled bool   `json:"mqtt_enabled"`
	WSURL       string `json:"ws_url"`
	TopicPrefix string `json:"topic_prefix"`
	BrokerURL   string `json:"broker_url"`
}

// Client calls the registry API.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		baseURL: base,
		http:    httpClient,
		logger:  noopLogger{},
	}

	threshold := uint32(cfg.FailureThreshold)
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Temporary()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("registry circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c, nil
}

// SetLogger sets the logger for the client. Call before first use.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// BaseURL returns the normalised API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request performs one API call and returns the decoded JSON body.
//
// Parameters:
//   - path: API path relative to the base URL, e.g. "/flows/summary"
//   - method: HTTP method; empty means GET
//   - token: Bearer token; empty sends no Authorization header
//   - body: JSON-encoded when non-nil
//
// Returns:
//   - json.RawMessage: The reply body, or {} when the reply was empty or not JSON
//   - error: *APIError for non-2xx replies, ErrRequestFailed or ErrCircuitOpen otherwise
func (c *Client) Request(ctx context.Context, path, method, token string, body any) (json.RawMessage, error) {
	resp, err := c.RequestWithMeta(ctx, path, method, token, body)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// RequestWithMeta is Request plus the reply status and headers.
func (c *Client) RequestWithMeta(ctx context.Context, path, method, token string, body any) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("registry: encode %s %s: %w", method, path, err)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, path, method, token, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		return nil, err
	}
	return result.(*Response), nil
}

func (c *Client) do(ctx context.Context, path, method, token string, payload []byte) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrRequestFailed, method, path, err)
	}

	c.logger.Debug("registry request",
		"method", method,
		"path", path,
		"status", res.StatusCode,
		"duration", time.Since(start).String(),
	)

	data := json.RawMessage(raw)
	if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
		data = json.RawMessage("{}")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, newAPIError(res.StatusCode, errorMessage(data))
	}

	return &Response{
		Status: res.StatusCode,
		Header: res.Header.Clone(),
		Data:   data,
	}, nil
}

// errorMessage extracts the "error" field of a JSON object, if it is a non-empty string.
func errorMessage(data json.RawMessage) string {
	var body struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if s, ok := body.Error.(string); ok {
		return s
	}
	return ""
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	data, err := c.Request(ctx, "/login", http.MethodPost, "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var out LoginResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: login: %w", ErrInvalidResponse, err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: login reply has no token", ErrInvalidResponse)
	}
	return &out, nil
}

// RealtimeConfig fetches the registry's event-feed settings.
func (c *Client) RealtimeConfig(ctx context.Context, token string) (*RealtimeConfig, error) {
	data, err := c.Request(ctx, "/realtime/config", http.MethodGet, token, nil)
	if err != nil {
		return nil, err
	}

	var out RealtimeConfig
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: realtime config: %w", ErrInvalidResponse, err)
	}
	return &out, nil
}

// FlowsSummary fetches the flow counters shown on the dashboard.
func (c *Client) FlowsSummary(ctx context.Context, token string) (json.RawMessage, error) {
	return c.Request(ctx, "/flows/summary", http.MethodGet, token, nil)
}

// BreakerState returns the breaker state name: "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}
