package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"skupulse/internal/infrastructure"
	"skupulse/pkg/contracts"
)

// StatsProvider is a component that can report its state, such as the table
// cache or the session store.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// HealthService provides health check functionality
type HealthService struct {
	version    string
	components map[string]StatsProvider
	startTime  time.Time
	logger     *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Stats   map[string]interface{} `json:"stats,omitempty"`
}

// NewHealthService creates a health service reporting on the named components.
func NewHealthService(version string, components map[string]StatsProvider, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = contracts.Version
	}
	return &HealthService{
		version:    version,
		components: components,
		startTime:  time.Now(),
		logger:     logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check",
		slog.Duration("uptime", time.Since(hs.startTime)))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  hs.componentHealth(),
	}
}

// ReadinessCheck reports ready when every registered component is present.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  hs.componentHealth(),
	}
	for _, svc := range status.Services {
		if sh, ok := svc.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}
	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "readiness check failed")
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	stats := infrastructure.CollectSystemStats(hs.startTime)
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":        stats.UptimeSeconds,
			"go_version":    runtime.Version(),
			"goroutines":    stats.Goroutines,
			"heap_alloc_mb": stats.HeapAllocMB,
			"sys_mb":        stats.SysMB,
			"num_gc":        stats.NumGC,
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      hs.version,
		"api_version":  info.APIVersion,
		"table_format": info.TableFormat,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"os":           info.OS,
		"arch":         info.Architecture,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
	}
}

func (hs *HealthService) componentHealth() map[string]interface{} {
	out := make(map[string]interface{}, len(hs.components))
	for name, c := range hs.components {
		if c == nil {
			out[name] = ServiceHealth{Status: "not_ready", Message: name + " not initialized"}
			continue
		}
		out[name] = ServiceHealth{Status: "ready", Stats: c.GetStats()}
	}
	return out
}
