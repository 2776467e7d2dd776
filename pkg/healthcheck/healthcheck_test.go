package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func static(status Status, message string) CheckFunc {
	return func(context.Context) (Status, string) { return status, message }
}

type panicking struct{}

func (panicking) Check(context.Context) Check { panic("checker bug") }

func TestRegistry_Check_NoCheckers(t *testing.T) {
	reg := New("1.0.0", zap.NewNop())

	report := reg.Check(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "1.0.0", report.AppVersion)
	assert.Empty(t, report.Checks)
}

func TestRegistry_Check_AggregatesStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New("1.0.0", zaptest.NewLogger(t))
			for i, s := range tt.statuses {
				reg.Register(string(rune('c'-i)), static(s, ""))
			}

			report := reg.Check(context.Background())

			assert.Equal(t, tt.want, report.Status)
			require.Len(t, report.Checks, len(tt.statuses))
			for i := 1; i < len(report.Checks); i++ {
				assert.Less(t, report.Checks[i-1].Name, report.Checks[i].Name, "checks are sorted by name")
			}
		})
	}
}

func TestRegistry_Check_PanickingCheckerIsUnhealthy(t *testing.T) {
	reg := New("1.0.0", zaptest.NewLogger(t))
	reg.Register("ai_credential", static(StatusHealthy, ""))
	reg.Register("session_store", panicking{})

	report := reg.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, report.Status)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "session_store", report.Checks[1].Name)
	assert.Contains(t, report.Checks[1].Message, "checker bug")
}

func TestRegistry_Check_IsCached(t *testing.T) {
	reg := New("1.0.0", zap.NewNop())
	var calls atomic.Int32
	reg.Register("counting", CheckFunc(func(context.Context) (Status, string) {
		calls.Add(1)
		return StatusHealthy, ""
	}))

	reg.Check(context.Background())
	reg.Check(context.Background())
	assert.EqualValues(t, 1, calls.Load())

	reg.SetCacheTTL(0)
	reg.Check(context.Background())
	assert.EqualValues(t, 2, calls.Load())
}

func TestPingCheck(t *testing.T) {
	healthy := PingCheck(pingFunc(func(context.Context) error { return nil })).Check(context.Background())
	assert.Equal(t, StatusHealthy, healthy.Status)

	down := PingCheck(pingFunc(func(context.Context) error { return errors.New("connection refused") })).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, down.Status)
	assert.Equal(t, "connection refused", down.Message)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		status    Status
		health    int
		readiness int
	}{
		{"healthy", StatusHealthy, http.StatusOK, http.StatusOK},
		{"degraded", StatusDegraded, http.StatusOK, http.StatusOK},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New("1.0.0", zap.NewNop())
			reg.Register("session_store", static(tt.status, "ping"))

			r := gin.New()
			r.GET("/health", reg.Handler())
			r.GET("/health/live", reg.LivenessHandler())
			r.GET("/health/ready", reg.ReadinessHandler())

			get := func(path string) *httptest.ResponseRecorder {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				return rec
			}

			health := get("/health")
			assert.Equal(t, tt.health, health.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(health.Body.Bytes(), &body))
			assert.Equal(t, string(tt.status), body["status"])
			assert.Equal(t, "1.0.0", body["app_version"])

			assert.Equal(t, tt.readiness, get("/health/ready").Code)
			assert.Equal(t, http.StatusOK, get("/health/live").Code)
		})
	}
}
