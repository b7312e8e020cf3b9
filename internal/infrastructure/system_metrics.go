package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemStats is a snapshot of process resource usage.
type SystemStats struct {
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	SysMB         float64 `json:"sys_mb"`
	NumGC         uint32  `json:"num_gc"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// CollectSystemStats reads the Go runtime counters.
func CollectSystemStats(startTime time.Time) SystemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemStats{
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(m.HeapAlloc) / (1 << 20),
		SysMB:         float64(m.Sys) / (1 << 20),
		NumGC:         m.NumGC,
		UptimeSeconds: time.Since(startTime).Seconds(),
	}
}

// GaugeProbe reports an application level value, such as the number of live
// sessions, at collection time.
type GaugeProbe struct {
	Name        string
	Description string
	Observe     func() int64
}

// RegisterSystemMetrics registers runtime gauges and the given probes as
// observable instruments. The returned registration stops the callbacks.
func RegisterSystemMetrics(meter metric.Meter, startTime time.Time, probes ...GaugeProbe) (metric.Registration, error) {
	goroutines, err := meter.Int64ObservableGauge("system_goroutines",
		metric.WithDescription("Number of active goroutines"))
	if err != nil {
		return nil, err
	}
	heap, err := meter.Int64ObservableGauge("system_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	uptime, err := meter.Float64ObservableGauge("system_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	instruments := []metric.Observable{goroutines, heap, uptime}
	gauges := make([]metric.Int64ObservableGauge, len(probes))
	for i, p := range probes {
		g, err := meter.Int64ObservableGauge(p.Name, metric.WithDescription(p.Description))
		if err != nil {
			return nil, err
		}
		gauges[i] = g
		instruments = append(instruments, g)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
		o.ObserveInt64(heap, int64(m.HeapAlloc))
		o.ObserveFloat64(uptime, time.Since(startTime).Seconds())
		for i, p := range probes {
			o.ObserveInt64(gauges[i], p.Observe())
		}
		return nil
	}, instruments...)
}
