// Package transport performs the HTTP calls behind the CMS content client.
//
// It owns everything between a (method, path, query) triple and a decoded
// response: URL construction, the access token, timeouts, retry with
// jittered backoff for 429/5xx/network failures, and JSON decoding.
// Failures are returned as tagged results (Response.Err), not Go errors.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the content delivery API root.
	DefaultBaseURL = "https://api.storyblok.com/v2"

	// HeaderTotal carries the total item count of a paginated list.
	HeaderTotal = "Total"

	// HeaderPerPage echoes the page size of a paginated list.
	HeaderPerPage = "Per-Page"
)

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  map[string]any
	Header http.Header
}

// Response is the outcome of a call. Err is set when the call failed; Data
// holds the decoded JSON body when there was one.
type Response struct {
	Data       any         `json:"data"`
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Err        *APIError   `json:"error,omitempty"`
}

// Object returns Data as a JSON object.
func (r *Response) Object() (map[string]any, bool) {
	if r == nil {
		return nil, false
	}
	m, ok := r.Data.(map[string]any)
	return m, ok
}

// Transport performs API calls.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Config holds the HTTP transport configuration.
type Config struct {
	// BaseURL is prefixed to every request path
	BaseURL string `yaml:"base_url"`

	// AccessToken is sent as the token query parameter
	AccessToken string `yaml:"access_token"`

	// UserAgent header
	UserAgent string `yaml:"user_agent"`

	// Timeout per attempt
	Timeout time.Duration `yaml:"timeout"`

	// Retry policy for 429, 5xx and network failures
	Retry RetryConfig `yaml:"retry"`
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(accessToken string) Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		AccessToken: accessToken,
		UserAgent:   "cms-content-client/0.1.0",
		Timeout:     30 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(cfg Config, logger zerolog.Logger) (*HTTPTransport, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &HTTPTransport{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// URL builds the absolute URL for a request.
func (t *HTTPTransport) URL(path string, query map[string]any) string {
	q := query
	if t.config.AccessToken != "" {
		q = CloneQuery(query)
		q["token"] = t.config.AccessToken
	}

	u := strings.TrimRight(t.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if encoded := EncodeQuery(q); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// Do performs the request with retries. The returned error is non-nil only
// when the request cannot be built; every API or network failure is carried
// in Response.Err.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	endpoint := "/" + strings.TrimLeft(req.Path, "/")
	target := t.URL(req.Path, req.Query)

	if _, err := http.NewRequestWithContext(ctx, method, target, nil); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var result *Response
	retryErr := retryWithBackoff(ctx, t.config.Retry, t.logger, func(attempt int) error {
		httpReq, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return err
		}
		for key, values := range req.Header {
			for _, v := range values {
				httpReq.Header.Add(key, v)
			}
		}
		httpReq.Header.Set("Accept", "application/json")
		if t.config.UserAgent != "" {
			httpReq.Header.Set("User-Agent", t.config.UserAgent)
		}

		t.logger.Debug().
			Str("endpoint", endpoint).
			Str("method", method).
			Int("attempt", attempt).
			Msg("Executing CMS request")

		resp, err := t.httpClient.Do(httpReq)
		if err != nil {
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			t.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			result = &Response{Err: &APIError{
				Class:   ErrorClassNetwork,
				Message: "request failed",
				Err:     err,
			}}
			return &retryableError{class: ErrorClassNetwork, err: err}
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		result, err = decodeResponse(resp)
		if err != nil {
			return err
		}

		if result.Err != nil {
			errorsTotal.WithLabelValues(string(result.Err.Class)).Inc()
			t.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(result.Err.Class)).
				Msg("CMS request error")
			return &retryableError{class: result.Err.Class, err: result.Err}
		}
		return nil
	})

	if retryErr != nil && result == nil {
		return nil, retryErr
	}
	if retryErr != nil && errors.Is(retryErr, ErrContextCancelled) && result.Err != nil && result.Err.Err == nil {
		result.Err.Err = ctx.Err()
	}
	return result, nil
}

// decodeResponse reads the body and classifies the status.
func decodeResponse(resp *http.Response) (*Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Err: &APIError{
				StatusCode: resp.StatusCode,
				Class:      ErrorClassNetwork,
				Message:    "read response body",
				Err:        err,
			},
		}, &retryableError{class: ErrorClassNetwork, err: err}
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
	}

	if len(body) > 0 {
		var data any
		if err := json.Unmarshal(body, &data); err == nil {
			result.Data = data
		} else if resp.StatusCode < 400 {
			result.Err = &APIError{
				StatusCode: resp.StatusCode,
				Class:      ErrorClassClient,
				Message:    "decode response body",
				Err:        err,
			}
			return result, nil
		}
	}

	if class := ClassifyStatus(resp.StatusCode); class != "" {
		result.Err = &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    errorMessage(resp, result.Data),
		}
	}
	return result, nil
}

// errorMessage prefers the API's own error text over the status line.
func errorMessage(resp *http.Response, data any) string {
	if m, ok := data.(map[string]any); ok {
		if msg, ok := m["error"].(string); ok && msg != "" {
			return msg
		}
	}
	return resp.Status
}
