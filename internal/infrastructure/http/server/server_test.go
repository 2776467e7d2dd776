package server

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/pantrylens/internal/application/actions"
	kitchenapp "github.com/alchemorsel/pantrylens/internal/application/kitchen"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/config"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/session"
	"github.com/alchemorsel/pantrylens/pkg/errors"
	"github.com/alchemorsel/pantrylens/test/testutils"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Environment: "test"},
		Server: config.ServerConfig{
			Host:              "127.0.0.1",
			Port:              0,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      5 * time.Second,
			EnableCompression: true,
		},
		Upload:    config.UploadConfig{MaxPhotoBytes: 4 << 20},
		Session:   config.SessionConfig{CookieName: "pantrylens-session", TTL: time.Hour},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstSize: 2},
	}
}

type fixture struct {
	server  *httptest.Server
	metrics *monitoring.MetricsCollector
}

// newFixture wires the server without an AI credential
func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	metrics := monitoring.NewMetricsCollector(logger)
	tracer, err := monitoring.NewTracingProvider(context.Background(), monitoring.TracingConfig{}, logger)
	require.NoError(t, err)

	acts := actions.NewService(nil, false, metrics, tracer, logger)
	store := session.NewStore(testutils.NewMockCacheRepository(), time.Hour, logger)
	kitchen := kitchenapp.NewService(acts, store, metrics, kitchenapp.Config{MaxPhotoBytes: cfg.Upload.MaxPhotoBytes}, logger)
	t.Cleanup(func() { _ = kitchen.Shutdown(context.Background()) })

	templates, err := handlers.ParseTemplates()
	require.NoError(t, err)

	srv := NewServer(cfg,
		handlers.NewFrontendHandlers(templates, kitchen, cfg.Upload.MaxPhotoBytes, logger),
		handlers.NewAPIHandlers(acts, logger),
		metrics, logger,
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{server: ts, metrics: metrics}
}

func TestServer_IssuesSessionCookieAndSecurityHeaders(t *testing.T) {
	f := newFixture(t, testConfig())
	ha := testutils.NewHTTPAssertions(t)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Get(f.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	ha.StatusCode(resp, http.StatusOK)
	ha.HasHeader(resp, "Content-Security-Policy")
	ha.Header(resp, "X-Frame-Options", "DENY")

	var sid string
	for _, c := range resp.Cookies() {
		if c.Name == "pantrylens-session" {
			sid = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	require.NotEmpty(t, sid)

	// The cookie is kept on later requests.
	resp2, err := client.Get(f.server.URL + "/notifications")
	require.NoError(t, err)
	defer resp2.Body.Close()
	for _, c := range resp2.Cookies() {
		if c.Name == "pantrylens-session" {
			assert.Equal(t, sid, c.Value)
		}
	}
}

func TestServer_APIWithoutCredential(t *testing.T) {
	f := newFixture(t, testConfig())
	ha := testutils.NewHTTPAssertions(t)

	resp, err := http.Post(f.server.URL+"/api/v1/ai/recipe-ingredients", "application/json", strings.NewReader(`{"recipeName":"Tacos"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	ha.StatusCode(resp, http.StatusServiceUnavailable)
	ha.ErrorResponse(resp, string(errors.CodeConfiguration), actions.MissingCredentialMessage)
	for _, c := range resp.Cookies() {
		assert.NotEqual(t, "pantrylens-session", c.Name)
	}
}

func TestServer_RateLimitsAIRoutes(t *testing.T) {
	f := newFixture(t, testConfig())

	statuses := make([]int, 0, 3)
	for range 3 {
		resp, err := http.Post(f.server.URL+"/api/v1/ai/recipes", "application/json", strings.NewReader(`{"ingredients":["egg"]}`))
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusTooManyRequests}, statuses)

	// Reads are never limited.
	for range 3 {
		resp, err := http.Get(f.server.URL + "/recipes")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "http_rate_limited_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestServer_PlainFormPostRedirects(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	f := newFixture(t, cfg)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Post(f.server.URL+"/recipes/close", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}
