// Package healthcheck reports whether the session backend and the AI
// credential let PantryLens serve photos, and exposes the result to the ops
// server as health, liveness and readiness endpoints.
package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/alchemorsel/pantrylens/pkg/fanout"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Status is the state of one dependency or of the whole service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const (
	checkTimeout    = 10 * time.Second
	defaultCacheTTL = 5 * time.Second
)

// Check is the outcome of one named check.
type Check struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Message    string    `json:"message,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Report is the body of the health endpoint. Checks are sorted by name.
type Report struct {
	Status     Status    `json:"status"`
	AppVersion string    `json:"app_version"`
	CheckedAt  time.Time `json:"checked_at"`
	Checks     []Check   `json:"checks"`
	DurationMS int64     `json:"duration_ms"`
}

// Checker reports the state of one dependency.
type Checker interface {
	Check(ctx context.Context) Check
}

// CheckFunc adapts a function to a Checker.
type CheckFunc func(ctx context.Context) (Status, string)

// Check runs f and times it.
func (f CheckFunc) Check(ctx context.Context) Check {
	start := time.Now()
	status, message := f(ctx)
	return Check{
		Status:     status,
		Message:    message,
		CheckedAt:  start,
		DurationMS: time.Since(start).Milliseconds(),
	}
}

// Pinger is implemented by session backends with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports the backend unhealthy while its ping fails.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) (Status, string) {
		if err := p.Ping(ctx); err != nil {
			return StatusUnhealthy, err.Error()
		}
		return StatusHealthy, ""
	}
}

// Registry runs the registered checks concurrently and caches the report
// for a short while, so scrapes do not ping redis on every request.
type Registry struct {
	appVersion string
	logger     *zap.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
	cached   *Report
	cacheTTL time.Duration
}

// New creates an empty registry reporting appVersion.
func New(appVersion string, logger *zap.Logger) *Registry {
	return &Registry{
		appVersion: appVersion,
		logger:     logger,
		checkers:   make(map[string]Checker),
		cacheTTL:   defaultCacheTTL,
	}
}

// Register adds or replaces the checker for name.
func (r *Registry) Register(name string, checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
	r.cached = nil
}

// SetCacheTTL changes how long a report is reused. Zero disables caching.
func (r *Registry) SetCacheTTL(ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheTTL = ttl
}

// Check runs every registered check, or returns the cached report. The
// service is unhealthy if any check is, degraded if any check is degraded.
// A panicking checker counts as unhealthy.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	if r.cached != nil && time.Since(r.cached.CheckedAt) < r.cacheTTL {
		report := *r.cached
		r.mu.RUnlock()
		return report
	}
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()
	slices.Sort(names)

	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	results := fanout.Map(checkCtx, names, 0, func(ctx context.Context, _ int, name string) (Check, error) {
		return checkers[name].Check(ctx), nil
	})

	report := Report{
		Status:     StatusHealthy,
		AppVersion: r.appVersion,
		CheckedAt:  start,
		Checks:     make([]Check, 0, len(names)),
	}
	for i, res := range results {
		check := res.Value
		if res.Err != nil {
			check = Check{Status: StatusUnhealthy, Message: fmt.Sprintf("check failed: %v", res.Err), CheckedAt: start}
		}
		check.Name = names[i]
		report.Checks = append(report.Checks, check)

		switch check.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
			r.logger.Warn("Health check failed", zap.String("check", check.Name), zap.String("message", check.Message))
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}
	report.DurationMS = time.Since(start).Milliseconds()

	r.mu.Lock()
	r.cached = &report
	r.mu.Unlock()

	return report
}

// Handler serves the full report, 503 while unhealthy.
func (r *Registry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := r.Check(c.Request.Context())

		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

// LivenessHandler answers as long as the process serves requests.
func (r *Registry) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	}
}

// ReadinessHandler reports whether the service should take traffic. A
// degraded service still does: without an AI key the UI explains what is
// missing.
func (r *Registry) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := r.Check(c.Request.Context())

		if report.Status == StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"checks": report.Checks,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "ready",
			"degraded": report.Status == StatusDegraded,
		})
	}
}
