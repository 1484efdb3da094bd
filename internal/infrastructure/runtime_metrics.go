package infrastructure

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// RuntimeStats is one sample of the Go runtime
type RuntimeStats struct {
	Goroutines  int64
	HeapAlloc   int64
	HeapSys     int64
	GCCount     uint32
	LastGCPause time.Duration
	Uptime      time.Duration
	Timestamp   time.Time
}

// RuntimeMetrics records runtime gauges next to the business metrics
type RuntimeMetrics struct {
	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	heapSys    metric.Int64Gauge
	gcPause    metric.Float64Histogram
	uptime     metric.Float64Gauge
}

// NewRuntimeMetrics registers the runtime instruments on meter
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	var (
		m    RuntimeMetrics
		err  error
		errs []error
	)
	add := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	m.goroutines, err = meter.Int64Gauge("runtime_goroutines",
		metric.WithDescription("Number of live goroutines"))
	add(err)
	m.heapAlloc, err = meter.Int64Gauge("runtime_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"))
	add(err)
	m.heapSys, err = meter.Int64Gauge("runtime_heap_sys_bytes",
		metric.WithDescription("Bytes of heap memory obtained from the OS"),
		metric.WithUnit("By"))
	add(err)
	m.gcPause, err = meter.Float64Histogram("runtime_gc_pause_seconds",
		metric.WithDescription("Most recent GC stop-the-world pause"),
		metric.WithUnit("s"))
	add(err)
	m.uptime, err = meter.Float64Gauge("process_uptime_seconds",
		metric.WithDescription("Seconds since the process started"),
		metric.WithUnit("s"))
	add(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &m, nil
}

// Collect samples the runtime and records the gauges
func (m *RuntimeMetrics) Collect(ctx context.Context, startTime time.Time) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RuntimeStats{
		Goroutines: int64(runtime.NumGoroutine()),
		HeapAlloc:  int64(mem.HeapAlloc),
		HeapSys:    int64(mem.HeapSys),
		GCCount:    mem.NumGC,
		Uptime:     time.Since(startTime),
		Timestamp:  time.Now(),
	}
	if mem.NumGC > 0 {
		stats.LastGCPause = time.Duration(mem.PauseNs[(mem.NumGC+255)%256])
	}

	m.goroutines.Record(ctx, stats.Goroutines)
	m.heapAlloc.Record(ctx, stats.HeapAlloc)
	m.heapSys.Record(ctx, stats.HeapSys)
	m.uptime.Record(ctx, stats.Uptime.Seconds())
	if stats.LastGCPause > 0 {
		m.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}
	return stats
}

// RuntimeCollector samples the runtime on a fixed interval
type RuntimeCollector struct {
	metrics   *RuntimeMetrics
	startTime time.Time
	interval  time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRuntimeCollector creates a collector. Call Start in its own goroutine.
func NewRuntimeCollector(meter metric.Meter, interval time.Duration) (*RuntimeCollector, error) {
	metrics, err := NewRuntimeMetrics(meter)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &RuntimeCollector{
		metrics:   metrics,
		startTime: time.Now(),
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start collects until Stop is called or ctx is done
func (c *RuntimeCollector) Start(ctx context.Context) {
	c.started.Store(true)
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.metrics.Collect(ctx, c.startTime)
	for {
		select {
		case <-ticker.C:
			c.metrics.Collect(ctx, c.startTime)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends collection and waits for a running Start to return
func (c *RuntimeCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.started.Load() {
		<-c.doneCh
	}
}

// Snapshot takes a sample immediately
func (c *RuntimeCollector) Snapshot(ctx context.Context) RuntimeStats {
	return c.metrics.Collect(ctx, c.startTime)
}
