package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// DegradationLevel grades a dependency by its recent error rate
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelDegraded:
		return "degraded"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// DegradationConfig holds the error-rate thresholds and the window they
// are measured over.
type DegradationConfig struct {
	DegradedThreshold float64       `json:"degraded_threshold"`
	CriticalThreshold float64       `json:"critical_threshold"`
	Window            time.Duration `json:"window"`
	// MinRequests keeps a single early failure from grading a service.
	MinRequests int64 `json:"min_requests"`
}

// DefaultDegradationConfig returns sensible defaults
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		DegradedThreshold: 0.1,
		CriticalThreshold: 0.5,
		Window:            15 * time.Minute,
		MinRequests:       3,
	}
}

// ServiceHealth is a snapshot of one tracked dependency
type ServiceHealth struct {
	ServiceName   string           `json:"service_name"`
	Level         DegradationLevel `json:"-"`
	LevelName     string           `json:"level"`
	ErrorRate     float64          `json:"error_rate"`
	TotalRequests int64            `json:"total_requests"`
	ErrorCount    int64            `json:"error_count"`
	LastError     string           `json:"last_error,omitempty"`
	LastErrorTime *time.Time       `json:"last_error_time,omitempty"`
}

type serviceWindow struct {
	health      ServiceHealth
	windowStart time.Time
}

// DegradationManager tracks call outcomes of external dependencies
type DegradationManager struct {
	config   DegradationConfig
	mutex    sync.RWMutex
	services map[string]*serviceWindow
	now      func() time.Time
}

// NewDegradationManager creates a new degradation manager
func NewDegradationManager(config DegradationConfig) *DegradationManager {
	return &DegradationManager{
		config:   config,
		services: make(map[string]*serviceWindow),
		now:      time.Now,
	}
}

// RegisterService starts tracking serviceName at LevelNormal
func (dm *DegradationManager) RegisterService(serviceName string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if _, exists := dm.services[serviceName]; exists {
		return
	}
	dm.services[serviceName] = &serviceWindow{
		health:      ServiceHealth{ServiceName: serviceName, LevelName: LevelNormal.String()},
		windowStart: dm.now(),
	}
}

// RecordResult records one call outcome. Unregistered services are ignored.
func (dm *DegradationManager) RecordResult(serviceName string, err error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	svc, exists := dm.services[serviceName]
	if !exists {
		return
	}

	now := dm.now()
	if now.Sub(svc.windowStart) > dm.config.Window {
		svc.health.TotalRequests = 0
		svc.health.ErrorCount = 0
		svc.windowStart = now
	}

	h := &svc.health
	h.TotalRequests++
	if err != nil {
		h.ErrorCount++
		h.LastError = err.Error()
		h.LastErrorTime = &now
	}
	h.ErrorRate = float64(h.ErrorCount) / float64(h.TotalRequests)

	oldLevel := h.Level
	switch {
	case h.TotalRequests < dm.config.MinRequests:
		h.Level = LevelNormal
	case h.ErrorRate >= dm.config.CriticalThreshold:
		h.Level = LevelCritical
	case h.ErrorRate >= dm.config.DegradedThreshold:
		h.Level = LevelDegraded
	default:
		h.Level = LevelNormal
	}
	h.LevelName = h.Level.String()

	if oldLevel != h.Level {
		slog.Warn("Service degradation level changed",
			"service", serviceName,
			"old_level", oldLevel.String(),
			"new_level", h.Level.String(),
			"error_rate", h.ErrorRate,
			"total_requests", h.TotalRequests)
	}
}

// GetServiceHealth returns a copy of the health of a service
func (dm *DegradationManager) GetServiceHealth(serviceName string) (ServiceHealth, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	svc, exists := dm.services[serviceName]
	if !exists {
		return ServiceHealth{}, false
	}
	return svc.health, true
}

// GetAllServiceHealth returns health status for all services
func (dm *DegradationManager) GetAllServiceHealth() map[string]ServiceHealth {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	out := make(map[string]ServiceHealth, len(dm.services))
	for name, svc := range dm.services {
		out[name] = svc.health
	}
	return out
}
