package metric

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBuckets are the histogram buckets, in milliseconds.
var DefaultBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// timerWindow is how many samples a timer keeps for percentile summaries.
const timerWindow = 1000

// Registry tracks the service's counters, histograms, and timers, and exports
// both a JSON dump and Prometheus text format.
type Registry struct {
	mu       sync.Mutex
	counters map[string]float64
	timers   map[string]*ringTimer

	prom       *prometheus.Registry
	cacheHits  *prometheus.CounterVec
	cacheMiss  *prometheus.CounterVec
	dedupHits  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	slowQuery  *prometheus.CounterVec
	bytes      *prometheus.CounterVec
	histograms *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := &Registry{
		counters: map[string]float64{},
		timers:   map[string]*ringTimer{},
		prom:     prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconduit_cache_hits_total",
			Help: "Cache hits by layer and cache name.",
		}, []string{"layer", "name"}),
		cacheMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconduit_cache_misses_total",
			Help: "Cache misses by layer and cache name.",
		}, []string{"layer", "name"}),
		dedupHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconduit_dedup_hits_total",
			Help: "Coalesced requests that piggybacked on an in-flight call.",
		}, []string{"source"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconduit_errors_total",
			Help: "Errors by service, operation, and type.",
		}, []string{"service", "op", "type"}),
		slowQuery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconduit_slow_queries_total",
			Help: "Operations exceeding their slow threshold.",
		}, []string{"service", "op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconduit_bytes_total",
			Help: "Bytes moved, by direction.",
		}, []string{"direction"}),
		histograms: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iconduit_operation_duration_ms",
			Help:    "Operation latency in milliseconds.",
			Buckets: DefaultBuckets,
		}, []string{"op"}),
	}
	r.prom.MustRegister(r.cacheHits, r.cacheMiss, r.dedupHits, r.errors, r.slowQuery, r.bytes, r.histograms)
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Reset replaces the process-wide registry. For tests only.
func Reset() {
	defaultRegistry = NewRegistry()
}

func (r *Registry) bump(name string, by float64) {
	r.mu.Lock()
	r.counters[name] += by
	r.mu.Unlock()
}

func (r *Registry) CacheHit(layer, name string) {
	r.cacheHits.WithLabelValues(layer, name).Inc()
	r.bump("cache_hit_"+layer+"_"+name, 1)
}

func (r *Registry) CacheMiss(layer, name string) {
	r.cacheMiss.WithLabelValues(layer, name).Inc()
	r.bump("cache_miss_"+layer+"_"+name, 1)
}

func (r *Registry) DedupHit(source string) {
	r.dedupHits.WithLabelValues(source).Inc()
	r.bump("dedup_hit_"+source, 1)
}

func (r *Registry) Error(service, op, typ string) {
	r.errors.WithLabelValues(service, op, typ).Inc()
	r.bump("error_"+service+"_"+op+"_"+typ, 1)
}

func (r *Registry) SlowQuery(service, op string) {
	r.slowQuery.WithLabelValues(service, op).Inc()
	r.bump("slow_query_"+service+"_"+op, 1)
}

func (r *Registry) Bytes(direction string, n int) {
	r.bytes.WithLabelValues(direction).Add(float64(n))
	r.bump("bytes_"+direction, float64(n))
}

// Observe records an operation latency into its histogram and timer.
func (r *Registry) Observe(op string, d time.Duration) {
	ms := float64(d.Microseconds()) / 1000
	r.histograms.WithLabelValues(op).Observe(ms)

	r.mu.Lock()
	t, ok := r.timers[op]
	if !ok {
		t = &ringTimer{}
		r.timers[op] = t
	}
	t.add(ms)
	r.mu.Unlock()
}

// Timer returns a stop function recording the elapsed time under op.
func (r *Registry) Timer(op string) func() {
	start := time.Now()
	return func() {
		r.Observe(op, time.Since(start))
	}
}

// TimerSummary is the percentile view over a timer's sample window.
type TimerSummary struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Snapshot is the JSON dump of the registry.
type Snapshot struct {
	Counters map[string]float64      `json:"counters"`
	Timers   map[string]TimerSummary `json:"timers"`
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Counters: make(map[string]float64, len(r.counters)),
		Timers:   make(map[string]TimerSummary, len(r.timers)),
	}
	for k, v := range r.counters {
		snap.Counters[k] = v
	}
	for k, t := range r.timers {
		snap.Timers[k] = t.summary()
	}
	return snap
}

// PrometheusHandler serves the registry in Prometheus text format.
func (r *Registry) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}

// ringTimer keeps the last timerWindow samples.
type ringTimer struct {
	samples [timerWindow]float64
	next    int
	filled  bool
}

func (t *ringTimer) add(ms float64) {
	t.samples[t.next] = ms
	t.next++
	if t.next == timerWindow {
		t.next = 0
		t.filled = true
	}
}

func (t *ringTimer) summary() TimerSummary {
	n := t.next
	if t.filled {
		n = timerWindow
	}
	if n == 0 {
		return TimerSummary{}
	}
	sorted := make([]float64, n)
	copy(sorted, t.samples[:n])
	sort.Float64s(sorted)

	pick := func(p float64) float64 {
		idx := int(p * float64(n-1))
		return sorted[idx]
	}
	return TimerSummary{
		Count: n,
		P50:   pick(0.50),
		P95:   pick(0.95),
		P99:   pick(0.99),
	}
}
