// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/docchat/internal/metrics"
)

// Configuration constants for the assistant service.
const (
	// DefaultBaseURL is the chat API root.
	DefaultBaseURL = "https://agente-ia-squad42.onrender.com/api/chat"

	// DefaultTimeout is the default timeout for API requests. Generating a
	// document can take a while, so this is generous.
	DefaultTimeout = 90 * time.Second

	// MaxResponseSize is the maximum allowed JSON response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// MaxUploadSize bounds documents sent with UploadDocument.
	MaxUploadSize = 50 * 1024 * 1024

	userAgent = "docchat/0.1.0"

	chatPathSuffix = "/api/chat"
)

// Error variables for common failures.
var (
	// ErrNotConfigured indicates the API token is not set.
	ErrNotConfigured = errors.New("API token not configured")

	// ErrUnauthorized indicates the token was rejected. The session must be
	// re-established before trying again.
	ErrUnauthorized = errors.New("unauthorized: session expired, log in again")

	// ErrMissingID indicates a required identifier was empty.
	ErrMissingID = errors.New("id is required")

	// ErrResponseTooLarge indicates the service sent more than MaxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeded maximum size")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("service error (HTTP %d): %s", e.Status, e.Message)
}

// TransportError wraps any failure talking to the service: network errors,
// non-2xx statuses and undecodable bodies alike.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err came from the client.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	return 0
}

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: timeout,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the assistant service. It is safe for concurrent use once
// configured; the With* builders must be called before first use.
type Client struct {
	baseURL      string
	documentsURL string
	token        string
	httpClient   *http.Client
	limiter      *rate.Limiter
	log          zerolog.Logger
	metrics      *metrics.Metrics

	onUnauthorized func()
}

// NewClient creates a client for the chat API at baseURL (for example
// https://host/api/chat). The document and template endpoints default to
// the same host with the /api/chat suffix removed.
func NewClient(baseURL, token string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	return &Client{
		baseURL:      baseURL,
		documentsURL: strings.TrimSuffix(baseURL, chatPathSuffix),
		token:        strings.TrimSpace(token),
		httpClient:   newHTTPClient(DefaultTimeout),
		log:          zerolog.Nop(),
	}
}

// WithDocumentsURL sets the root used for /api/documents and /api/templates.
func (c *Client) WithDocumentsURL(url string) *Client {
	if url = strings.TrimSuffix(strings.TrimSpace(url), "/"); url != "" {
		c.documentsURL = url
	}
	return c
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func (c *Client) WithRateLimit(perSecond float64) *Client {
	if perSecond <= 0 {
		c.limiter = nil
		return c
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(log zerolog.Logger) *Client {
	c.log = log.With().Str("component", "cloud").Logger()
	return c
}

// WithMetrics records per-request counters and durations.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// WithOnUnauthorized sets the hook called on a 401 response.
func (c *Client) WithOnUnauthorized(fn func()) *Client {
	c.onUnauthorized = fn
	return c
}

// BaseURL returns the chat API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsConfigured reports whether a token is set.
func (c *Client) IsConfigured() bool {
	return c.token != ""
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (c *Client) setHeaders(req *http.Request, contentType string) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
}

// do sends a request and returns the response for any 2xx status. Every
// failure is a *TransportError tagged with op. The caller closes the body.
func (c *Client) do(ctx context.Context, op, method, url string, body io.Reader, contentType string) (*http.Response, error) {
	if !c.IsConfigured() {
		return nil, &TransportError{Op: op, Err: ErrNotConfigured}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.setHeaders(req, contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	// SECURITY: Clear the token from the request once sent.
	req.Header.Del("Authorization")

	if err != nil {
		c.metrics.ObserveRequest(op, 0, duration)
		c.log.Debug().Str("op", op).Str("method", method).Dur("duration", duration).Err(err).Msg("request failed")
		return nil, &TransportError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}

	c.metrics.ObserveRequest(op, resp.StatusCode, duration)
	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("request completed")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.log.Warn().Str("op", op).Msg("token rejected, invalidating session")
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, &TransportError{Op: op, Err: ErrUnauthorized}
	}

	payload, _ := readResponse(resp)
	return nil, &TransportError{Op: op, Err: &APIError{Status: resp.StatusCode, Message: errorMessage(payload)}}
}

// doJSON sends in (if non-nil) as JSON and decodes a 2xx body into out
// (if non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, url string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, op, method, url, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := readResponse(resp)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// readResponse reads and returns the response body with size limits.
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("%w of %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}
	return body, nil
}

// errorMessage extracts a human-readable message from an error body. The
// service uses {"error": "..."}, {"detail": "..."} or {"message": "..."};
// anything else is returned as trimmed text.
func errorMessage(body []byte) string {
	var parsed struct {
		Error   any    `json:"error"`
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, v := range []any{parsed.Error, parsed.Detail, parsed.Message} {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under one of keys.
func decodeList[T any](payload []byte, keys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	for _, key := range keys {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		var list []T
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		if list == nil {
			list = []T{}
		}
		return list, nil
	}
	return nil, fmt.Errorf("expected a list or an object with one of %v", keys)
}

// getList fetches url and decodes it with decodeList.
func getList[T any](ctx context.Context, c *Client, op, url string, keys ...string) ([]T, error) {
	resp, err := c.do(ctx, op, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := readResponse(resp)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	list, err := decodeList[T](payload, keys...)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return list, nil
}
