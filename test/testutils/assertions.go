// Package testutils provides custom assertions and testing utilities
package testutils

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPAssertions provides HTTP-specific assertion methods
type HTTPAssertions struct {
	t *testing.T
}

// NewHTTPAssertions creates a new HTTP assertions helper
func NewHTTPAssertions(t *testing.T) *HTTPAssertions {
	return &HTTPAssertions{t: t}
}

// APIEnvelope mirrors the JSON API response envelope
type APIEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code     string         `json:"code"`
		Message  string         `json:"message"`
		Metadata map[string]any `json:"metadata,omitempty"`
	} `json:"error,omitempty"`
}

// StatusCode asserts the HTTP status code
func (ha *HTTPAssertions) StatusCode(resp *http.Response, expectedCode int, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.Equal(ha.t, expectedCode, resp.StatusCode, msgAndArgs...)
}

// JSONResponse asserts that the response is valid JSON and unmarshals it
func (ha *HTTPAssertions) JSONResponse(resp *http.Response, target interface{}, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")

	contentType := resp.Header.Get("Content-Type")
	assert.True(ha.t, strings.Contains(contentType, "application/json"),
		"Response should have JSON content type, got: %s", contentType)

	err := json.NewDecoder(resp.Body).Decode(target)
	require.NoError(ha.t, err, "Response should be valid JSON")
}

// Success decodes a successful envelope's data into target
func (ha *HTTPAssertions) Success(resp *http.Response, target interface{}) {
	var env APIEnvelope
	ha.JSONResponse(resp, &env)
	require.True(ha.t, env.Success, "Response should be successful")
	if target != nil {
		require.NoError(ha.t, json.Unmarshal(env.Data, target))
	}
}

// ErrorResponse asserts an error envelope with the given code and message
func (ha *HTTPAssertions) ErrorResponse(resp *http.Response, expectedCode, expectedMessage string, msgAndArgs ...interface{}) {
	var env APIEnvelope
	ha.JSONResponse(resp, &env)

	assert.False(ha.t, env.Success, "Response should not be successful")
	require.NotNil(ha.t, env.Error, "Response should contain error field")
	assert.Equal(ha.t, expectedCode, env.Error.Code, msgAndArgs...)
	if expectedMessage != "" {
		assert.Equal(ha.t, expectedMessage, env.Error.Message, msgAndArgs...)
	}
}

// Header asserts that a header exists with expected value
func (ha *HTTPAssertions) Header(resp *http.Response, headerName, expectedValue string, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.Equal(ha.t, expectedValue, resp.Header.Get(headerName), msgAndArgs...)
}

// HasHeader asserts that a header exists
func (ha *HTTPAssertions) HasHeader(resp *http.Response, headerName string, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.NotEmpty(ha.t, resp.Header.Get(headerName), "Response should have header %s", headerName)
}

// SecurityHeaders asserts that security headers are present
func (ha *HTTPAssertions) SecurityHeaders(resp *http.Response) {
	for _, header := range []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
		"Referrer-Policy",
		"Content-Security-Policy",
	} {
		ha.HasHeader(resp, header)
	}
}
