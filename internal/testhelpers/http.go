// Package testhelpers holds shared fixtures for blockwatch tests: a chainable
// HTTP request recorder, a migrated sqlite store, entity builders and a
// recording alert sink.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// HTTPTestContext is one request against a handler plus the recorded reply.
// Methods chain and report failures on T.
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	return &HTTPTestContext{T: t, Recorder: httptest.NewRecorder(), Request: httptest.NewRequest(method, path, body)}
}

// WithJSONBody replaces the request body with v encoded as JSON, keeping existing headers
func (c *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	c.T.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		c.T.Fatalf("encode request body: %v", err)
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(payload))
	c.Request.ContentLength = int64(len(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func (c *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	c.Request.Header.Set("Authorization", "Bearer "+token)
	return c
}

func (c *HTTPTestContext) Execute(h http.Handler) *HTTPTestContext {
	h.ServeHTTP(c.Recorder, c.Request)
	return c
}

func (c *HTTPTestContext) ExecuteFunc(h http.HandlerFunc) *HTTPTestContext {
	return c.Execute(h)
}

func (c *HTTPTestContext) AssertStatus(want int) *HTTPTestContext {
	c.T.Helper()
	if got := c.Recorder.Code; got != want {
		c.T.Errorf("%s %s: status %d, want %d; body: %s", c.Request.Method, c.Request.URL.Path, got, want, c.Recorder.Body.String())
	}
	return c
}

func (c *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	c.T.Helper()
	if body := c.Recorder.Body.String(); !strings.Contains(body, substr) {
		c.T.Errorf("%s %s: body lacks %q: %s", c.Request.Method, c.Request.URL.Path, substr, body)
	}
	return c
}

// DecodeJSON decodes the recorded body into v, aborting the test on failure
func (c *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	c.T.Helper()
	if err := json.Unmarshal(c.Recorder.Body.Bytes(), v); err != nil {
		c.T.Fatalf("decode %s %s reply: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	return c
}
