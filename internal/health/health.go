package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/monitoring"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/resilience"
)

// Status is the overall or per-check health state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const memoryDegradedPercent = 90

// Pinger is a required dependency.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// OptionalPinger is a dependency that may be left unconfigured.
type OptionalPinger interface {
	Pinger
	Configured() bool
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status         Status                 `json:"status"`
	ResponseTimeMs int64                  `json:"response_time_ms,omitempty"`
	Message        string                 `json:"message,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// Report is the body of GET /health.
type Report struct {
	Status        Status                 `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	UptimeSeconds float64                `json:"uptime_seconds"`
	Environment   string                 `json:"environment"`
	Version       string                 `json:"version"`
	Checks        map[string]CheckResult `json:"checks"`
}

// Config wires the checker. Redis, Breakers and Degradation may be nil.
type Config struct {
	Database         Pinger
	Redis            OptionalPinger
	Breakers         *resilience.CircuitBreakerRegistry
	Degradation      *resilience.DegradationManager
	GeneratorService string
	GeneratorEnabled bool
	Environment      string
	Version          string
	Timeout          time.Duration
}

// Checker runs the health checks
type Checker struct {
	config  Config
	started time.Time
	memory  func() monitoring.MemoryStats
	now     func() time.Time
}

// NewChecker creates a checker. Uptime counts from this call.
func NewChecker(config Config) *Checker {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Checker{
		config:  config,
		started: time.Now(),
		memory:  monitoring.ReadMemoryStats,
		now:     time.Now,
	}
}

// Check runs every check in parallel. The database decides between
// healthy and unhealthy; any other failing check only degrades.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult)
	)
	record := func(name string, result CheckResult) {
		mu.Lock()
		checks[name] = result
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		record("database", c.checkDatabase(ctx))
		return nil
	})
	if c.config.Redis != nil && c.config.Redis.Configured() {
		g.Go(func() error {
			record("redis", c.checkRedis(ctx))
			return nil
		})
	}
	g.Go(func() error {
		record("narrative_generator", c.checkGenerator())
		return nil
	})
	g.Go(func() error {
		record("memory", c.checkMemory())
		return nil
	})
	_ = g.Wait()

	status := StatusHealthy
	for name, check := range checks {
		switch {
		case name == "database" && check.Status == StatusUnhealthy:
			status = StatusUnhealthy
		case check.Status != StatusHealthy && status == StatusHealthy:
			status = StatusDegraded
		}
	}

	now := c.now()
	return Report{
		Status:        status,
		Timestamp:     now.UTC(),
		UptimeSeconds: now.Sub(c.started).Seconds(),
		Environment:   c.config.Environment,
		Version:       c.config.Version,
		Checks:        checks,
	}
}

func timed(ctx context.Context, p Pinger) (time.Duration, error) {
	start := time.Now()
	err := p.HealthCheck(ctx)
	return time.Since(start), err
}

func (c *Checker) checkDatabase(ctx context.Context) CheckResult {
	elapsed, err := timed(ctx, c.config.Database)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, ResponseTimeMs: elapsed.Milliseconds(), Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, ResponseTimeMs: elapsed.Milliseconds()}
}

func (c *Checker) checkRedis(ctx context.Context) CheckResult {
	elapsed, err := timed(ctx, c.config.Redis)
	if err != nil {
		return CheckResult{
			Status:         StatusDegraded,
			ResponseTimeMs: elapsed.Milliseconds(),
			Message:        "rate limiting uses the in-memory fallback: " + err.Error(),
		}
	}
	return CheckResult{Status: StatusHealthy, ResponseTimeMs: elapsed.Milliseconds()}
}

func (c *Checker) checkGenerator() CheckResult {
	if !c.config.GeneratorEnabled {
		return CheckResult{Status: StatusDegraded, Message: "narrative generation is disabled"}
	}

	result := CheckResult{Status: StatusHealthy, Details: map[string]interface{}{}}

	if c.config.Breakers != nil {
		if breaker, ok := c.config.Breakers.Get(c.config.GeneratorService); ok {
			state := breaker.State()
			result.Details["circuit_state"] = state.String()
			if state == resilience.StateOpen {
				result.Status = StatusDegraded
				result.Message = "circuit breaker open"
			}
		}
	}

	if c.config.Degradation != nil && c.config.GeneratorService != "" {
		if svc, ok := c.config.Degradation.GetServiceHealth(c.config.GeneratorService); ok {
			result.Details["level"] = svc.LevelName
			result.Details["error_rate"] = svc.ErrorRate
			if svc.Level != resilience.LevelNormal && result.Status == StatusHealthy {
				result.Status = StatusDegraded
				result.Message = fmt.Sprintf("error rate %.0f%%", svc.ErrorRate*100)
			}
		}
	}

	return result
}

func (c *Checker) checkMemory() CheckResult {
	stats := c.memory()
	const mb = 1024 * 1024

	used := float64(stats.HeapAlloc) / mb
	total := float64(stats.HeapSys) / mb
	percentage := stats.HeapUsagePercent()

	result := CheckResult{
		Status: StatusHealthy,
		Details: map[string]interface{}{
			"used_mb":       roundTo(used, 2),
			"total_mb":      roundTo(total, 2),
			"percentage":    roundTo(percentage, 1),
			"num_goroutine": stats.NumGoroutine,
		},
	}
	if percentage > memoryDegradedPercent {
		result.Status = StatusDegraded
		result.Message = "heap usage high"
	}
	return result
}

func roundTo(v float64, places int) float64 {
	p := 1.0
	for i := 0; i < places; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}

// Handler serves the report, with 503 when unhealthy.
//
//	@Summary	Service health
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	Report
//	@Failure	503	{object}	Report
//	@Router		/health [get]
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		report := c.Check(ctx.Request.Context())

		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		ctx.JSON(code, report)
	}
}
