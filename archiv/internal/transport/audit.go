package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditEntry records one Fetch or Probe call.
type AuditEntry struct {
	Locator  string        `json:"locator"`
	Method   string        `json:"method"`
	Status   int           `json:"status"`
	Attempts int           `json:"attempts"`
	Cached   bool          `json:"cached"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// AuditLog collects the entries of one run. Safe for concurrent use.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewAuditLog creates an empty log.
func NewAuditLog() *AuditLog { return &AuditLog{} }

func (a *AuditLog) record(e AuditEntry) {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

// Entries returns a copy of all entries in call order.
func (a *AuditLog) Entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Failures returns the entries that ended in an error.
func (a *AuditLog) Failures() []AuditEntry {
	var out []AuditEntry
	for _, e := range a.Entries() {
		if e.Err != "" {
			out = append(out, e)
		}
	}
	return out
}

// NetworkCalls counts non-cached calls for method ("" counts all methods).
func (a *AuditLog) NetworkCalls(method string) int {
	n := 0
	for _, e := range a.Entries() {
		if !e.Cached && (method == "" || e.Method == method) {
			n++
		}
	}
	return n
}

// Metrics are the Prometheus collectors of the governor.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Retries   prometheus.Counter
	CacheHits prometheus.Counter
	Duration  prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg. A nil reg
// leaves them unregistered. Collectors already present on reg are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratsarchiv",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Outbound calls by method and outcome.",
		}, []string{"method", "outcome"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratsarchiv",
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Backoff retries after transient failures.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratsarchiv",
			Subsystem: "transport",
			Name:      "cache_hits_total",
			Help:      "Calls answered from the run cache.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ratsarchiv",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Wall time of network calls including retries and rate limiting.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
	if reg == nil {
		return m
	}
	m.Requests = register(reg, m.Requests)
	m.Retries = register(reg, m.Retries)
	m.CacheHits = register(reg, m.CacheHits)
	m.Duration = register(reg, m.Duration)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
