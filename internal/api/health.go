package api

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/clinical-note-classifier/internal/audit"
	"github.com/clinical-note-classifier/internal/cache"
)

const healthCheckTimeout = 2 * time.Second

// HealthState represents the health state of a component
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateWarning   HealthState = "warning"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name     string                 `json:"name"`
	Status   HealthState            `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Duration time.Duration          `json:"duration"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// HealthCheck defines the interface for a component health check
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

// CircuitState is satisfied by the resilient document retriever
type CircuitState interface {
	State() gobreaker.State
}

// runHealthChecks runs every check in parallel under a shared deadline
func runHealthChecks(ctx context.Context, checks []HealthCheck) []ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make([]ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check HealthCheck) {
			defer wg.Done()
			start := time.Now()
			result := check.Check(ctx)
			result.Name = check.Name()
			result.Duration = time.Since(start)
			results[i] = result
		}(i, check)
	}
	wg.Wait()
	return results
}

// overallStatus is "healthy" unless a component reports otherwise. The model
// is in process, so a degraded dependency never stops predictions.
func overallStatus(components []ComponentHealth) string {
	for _, component := range components {
		if component.Status != HealthStateHealthy {
			return "degraded"
		}
	}
	return string(HealthStateHealthy)
}

type cacheHealthCheck struct {
	cache cache.PredictionCache
}

func (h cacheHealthCheck) Name() string { return "cache" }

func (h cacheHealthCheck) Check(ctx context.Context) ComponentHealth {
	stats := h.cache.Stats()
	result := ComponentHealth{
		Status: HealthStateHealthy,
		Metadata: map[string]interface{}{
			"memory_entries": stats.MemoryEntries,
			"memory_hits":    stats.MemoryHits,
			"memory_misses":  stats.MemoryMisses,
			"redis_hits":     stats.RedisHits,
			"redis_misses":   stats.RedisMisses,
			"error_count":    stats.ErrorCount,
			"hit_ratio":      stats.HitRatio(),
		},
	}

	if err := h.cache.Ping(ctx); err != nil {
		result.Status = HealthStateWarning
		result.Message = "shared cache unreachable"
		result.Error = err.Error()
	}
	return result
}

type documentStoreHealthCheck struct {
	breaker CircuitState
}

func (h documentStoreHealthCheck) Name() string { return "document_store" }

func (h documentStoreHealthCheck) Check(context.Context) ComponentHealth {
	state := h.breaker.State()
	result := ComponentHealth{
		Status:   HealthStateHealthy,
		Metadata: map[string]interface{}{"circuit_breaker": state.String()},
	}

	switch state {
	case gobreaker.StateOpen:
		result.Status = HealthStateUnhealthy
		result.Message = "circuit breaker open"
	case gobreaker.StateHalfOpen:
		result.Status = HealthStateWarning
		result.Message = "circuit breaker half-open"
	}
	return result
}

type auditHealthCheck struct {
	store audit.Store
}

func (h auditHealthCheck) Name() string { return "audit" }

func (h auditHealthCheck) Check(ctx context.Context) ComponentHealth {
	count, err := h.store.Count(ctx)
	if err != nil {
		return ComponentHealth{
			Status:  HealthStateUnhealthy,
			Message: "audit store unreachable",
			Error:   err.Error(),
		}
	}

	result := ComponentHealth{
		Status:   HealthStateHealthy,
		Metadata: map[string]interface{}{"event_count": count},
	}

	latest, err := h.store.List(ctx, 1, 0)
	if err != nil {
		result.Status = HealthStateWarning
		result.Message = "failed to read latest audit event"
		result.Error = err.Error()
	} else if len(latest) > 0 {
		result.Metadata["last_event_at"] = latest[0].CreatedAt
	}
	return result
}
