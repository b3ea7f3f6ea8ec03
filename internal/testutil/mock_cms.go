// Package testutil provides testing utilities for the CMS content client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock CMS endpoint response.
type MockResponse struct {
	StatusCode int
	Body       any
	Headers    map[string]string
	Delay      time.Duration
}

// MockCMS is a configurable mock CMS content API for testing.
type MockCMS struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []*url.URL
}

// NewMockCMS creates a new mock CMS server.
func NewMockCMS() *MockCMS {
	mock := &MockCMS{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")

		mock.mu.Lock()
		u := *r.URL
		mock.requests = append(mock.requests, &u)
		handler, exists := mock.handlers[path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCMS) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCMS) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockCMS) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a path (without leading slash).
func (m *MockCMS) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[strings.TrimPrefix(path, "/")] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCMS) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		WriteResponse(w, resp)
	})
}

// SetSequence serves resps in order for path, repeating the last one.
func (m *MockCMS) SetSequence(path string, resps ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[next]
		if next < len(resps)-1 {
			next++
		}
		mu.Unlock()
		WriteResponse(w, resp)
	})
}

// Requests returns the URLs of every request received.
func (m *MockCMS) Requests() []*url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*url.URL, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests made to the server.
func (m *MockCMS) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// RequestCountFor returns the number of requests made to path.
func (m *MockCMS) RequestCountFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path = strings.TrimPrefix(path, "/")
	n := 0
	for _, u := range m.requests {
		if strings.TrimPrefix(u.Path, "/") == path {
			n++
		}
	}
	return n
}

// defaultHandler answers unknown paths with an empty published story list.
func (m *MockCMS) defaultHandler(w http.ResponseWriter, r *http.Request) {
	WriteResponse(w, NewOKResponse(map[string]any{"stories": []any{}}))
}

// WriteResponse writes resp as JSON.
func WriteResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if resp.Body != nil {
		_ = json.NewEncoder(w).Encode(resp.Body)
	}
}

// NewOKResponse creates a 200 response with a default rate limit policy.
func NewOKResponse(body any) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"X-RateLimit-Policy": `"concurrent-requests";q=1000`,
		},
	}
}

// NewStoryResponse creates a single-story response published under cv.
func NewStoryResponse(story map[string]any, cv int64) MockResponse {
	return NewOKResponse(map[string]any{"story": story, "cv": cv, "rels": []any{}, "links": []any{}})
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       map[string]any{"error": "Rate limit exceeded"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       map[string]any{"error": "Internal server error"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       map[string]any{"error": "This record could not be found"},
	}
}

// Story builds a minimal story with a root component.
func Story(uuid, slug string, content map[string]any) map[string]any {
	if content == nil {
		content = map[string]any{}
	}
	if _, ok := content["_uid"]; !ok {
		content["_uid"] = uuid + "-root"
	}
	if _, ok := content["component"]; !ok {
		content["component"] = "page"
	}
	return map[string]any{
		"uuid":      uuid,
		"slug":      slug,
		"full_slug": slug,
		"name":      slug,
		"content":   content,
	}
}
