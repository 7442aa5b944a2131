// Package metrics keeps in-process counters, gauges, and histograms for
// the admin snapshot endpoint. Everything lives in memory; a restart
// starts the counts over.
package metrics

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

// Metrics aggregates application metrics.
type Metrics struct {
	mu         sync.RWMutex
	db         *gorm.DB
	startTime  time.Time
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string]*Histogram
}

// Histogram keeps a bounded sample window per metric.
type Histogram struct {
	mu     sync.RWMutex
	values []float64
	sum    float64
	count  int64
}

const histogramWindow = 1000

// Snapshot is a point-in-time view of every metric, served to staff.
type Snapshot struct {
	Timestamp  time.Time                 `json:"timestamp"`
	Uptime     string                    `json:"uptime"`
	Version    string                    `json:"version"`
	GoVersion  string                    `json:"go_version"`
	Counters   map[string]int64          `json:"counters"`
	Gauges     map[string]float64        `json:"gauges"`
	Histograms map[string]HistogramStats `json:"histograms"`
	System     SystemMetrics             `json:"system"`
	Library    LibraryMetrics            `json:"library"`
}

// HistogramStats summarizes one histogram window.
type HistogramStats struct {
	Count   int64   `json:"count"`
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	P99     float64 `json:"p99"`
}

// SystemMetrics reports runtime health.
type SystemMetrics struct {
	GoRoutines  int    `json:"goroutines"`
	MemoryUsed  uint64 `json:"memory_used"`
	MemoryTotal uint64 `json:"memory_total"`
	CPUCount    int    `json:"cpu_count"`
	GCPauses    uint64 `json:"gc_pauses"`
	HeapObjects uint64 `json:"heap_objects"`
}

// LibraryMetrics reports catalog-level counts straight from the database.
type LibraryMetrics struct {
	Users             int64 `json:"users"`
	ActiveUsers       int64 `json:"active_users"`
	Books             int64 `json:"books"`
	Borrowings        int64 `json:"borrowings"`
	ActiveBorrowings  int64 `json:"active_borrowings"`
	OverdueBorrowings int64 `json:"overdue_borrowings"`
	Reviews           int64 `json:"reviews"`
	RagDocuments      int64 `json:"rag_documents"`
}

// NewMetrics creates a metrics registry. The db handle is only read at
// snapshot time.
func NewMetrics(db *gorm.DB) *Metrics {
	return &Metrics{
		db:         db,
		startTime:  time.Now(),
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]*Histogram),
	}
}

// IncrementCounter adds one to a counter.
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy adds value to a counter.
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

// SetGauge records the latest value of a gauge.
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// RecordHistogram adds a sample to a histogram.
func (m *Metrics) RecordHistogram(name string, value float64) {
	m.mu.Lock()
	hist, exists := m.histograms[name]
	if !exists {
		hist = &Histogram{values: make([]float64, 0, histogramWindow)}
		m.histograms[name] = hist
	}
	m.mu.Unlock()

	hist.mu.Lock()
	defer hist.mu.Unlock()
	hist.values = append(hist.values, value)
	hist.sum += value
	hist.count++
	if len(hist.values) > histogramWindow {
		hist.values = hist.values[len(hist.values)-histogramWindow:]
	}
}

// RequestMetrics records one HTTP request. path is the registered route
// pattern, not the raw URL, so counter cardinality stays bounded.
func (m *Metrics) RequestMetrics(method, path string, statusCode int, duration time.Duration) {
	m.IncrementCounter("http.requests.total")
	m.IncrementCounter("http.requests." + method)
	m.IncrementCounter("http.requests.status." + strconv.Itoa(statusCode/100) + "xx")
	if path != "" {
		m.IncrementCounter("http.requests.route." + method + " " + path)
	}

	m.RecordHistogram("http.request.duration", duration.Seconds())
}

// AuthMetrics records an authentication event by outcome.
func (m *Metrics) AuthMetrics(event string, success bool) {
	m.IncrementCounter("auth.events.total")
	if success {
		m.IncrementCounter("auth.events." + event + ".success")
	} else {
		m.IncrementCounter("auth.events." + event + ".failure")
	}
}

// SearchMetrics records one natural-language search.
func (m *Metrics) SearchMetrics(fallbackUsed bool, resultCount int, duration time.Duration) {
	m.IncrementCounter("search.nl.total")
	if fallbackUsed {
		m.IncrementCounter("search.nl.fallback")
	}
	m.RecordHistogram("search.nl.duration", duration.Seconds())
	m.RecordHistogram("search.nl.results", float64(resultCount))
}

// GetSnapshot assembles the current state of every metric.
func (m *Metrics) GetSnapshot(version string) Snapshot {
	m.mu.RLock()
	counters := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}
	histograms := make(map[string]HistogramStats, len(m.histograms))
	for name, hist := range m.histograms {
		histograms[name] = hist.getStats()
	}
	m.mu.RUnlock()

	return Snapshot{
		Timestamp:  time.Now(),
		Uptime:     time.Since(m.startTime).String(),
		Version:    version,
		GoVersion:  runtime.Version(),
		Counters:   counters,
		Gauges:     gauges,
		Histograms: histograms,
		System:     systemMetrics(),
		Library:    m.libraryMetrics(),
	}
}

func (h *Histogram) getStats() HistogramStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return HistogramStats{}
	}

	stats := HistogramStats{
		Count:   h.count,
		Sum:     h.sum,
		Average: h.sum / float64(h.count),
	}

	if len(h.values) > 0 {
		sorted := make([]float64, len(h.values))
		copy(sorted, h.values)
		for i := 1; i < len(sorted); i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}

		stats.Min = sorted[0]
		stats.Max = sorted[len(sorted)-1]
		stats.P50 = percentile(sorted, 0.5)
		stats.P95 = percentile(sorted, 0.95)
		stats.P99 = percentile(sorted, 0.99)
	}

	return stats
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func systemMetrics() SystemMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return SystemMetrics{
		GoRoutines:  runtime.NumGoroutine(),
		MemoryUsed:  mem.Alloc,
		MemoryTotal: mem.TotalAlloc,
		CPUCount:    runtime.NumCPU(),
		GCPauses:    mem.PauseTotalNs,
		HeapObjects: mem.HeapObjects,
	}
}

func (m *Metrics) libraryMetrics() LibraryMetrics {
	var lib LibraryMetrics
	if m.db == nil {
		return lib
	}

	now := time.Now().UTC()
	m.db.Model(&models.User{}).Count(&lib.Users)
	m.db.Model(&models.User{}).Where("is_active = ?", true).Count(&lib.ActiveUsers)
	m.db.Model(&models.Book{}).Count(&lib.Books)
	m.db.Model(&models.Borrowing{}).Count(&lib.Borrowings)
	m.db.Model(&models.Borrowing{}).Where("returned_at IS NULL").Count(&lib.ActiveBorrowings)
	m.db.Model(&models.Borrowing{}).Where("returned_at IS NULL AND due_date < ?", now).Count(&lib.OverdueBorrowings)
	m.db.Model(&models.Review{}).Count(&lib.Reviews)
	m.db.Model(&models.RagDocument{}).Count(&lib.RagDocuments)

	return lib
}

// Collector refreshes the system gauges on an interval.
type Collector struct {
	metrics *Metrics
	ticker  *time.Ticker
	done    chan struct{}
}

func NewCollector(metrics *Metrics, interval time.Duration) *Collector {
	return &Collector{
		metrics: metrics,
		ticker:  time.NewTicker(interval),
		done:    make(chan struct{}),
	}
}

// Start launches the collection loop.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-c.ticker.C:
				c.collect()
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the collection loop.
func (c *Collector) Stop() {
	c.ticker.Stop()
	close(c.done)
}

func (c *Collector) collect() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.metrics.SetGauge("system.goroutines", float64(runtime.NumGoroutine()))
	c.metrics.SetGauge("system.memory.used", float64(mem.Alloc))
	c.metrics.SetGauge("system.gc.num", float64(mem.NumGC))
}
