package performance

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/username/llm-orchestrator/internal/domain"
)

// PerformanceTracker accumulates per-provider counters across orchestration
// runs and exposes both an in-process read view and a Prometheus export
// surface. It owns a private registry so that more than one orchestrator can
// live in the same process without colliding on the default registry.
type PerformanceTracker struct {
	mu      sync.RWMutex
	records map[string]*providerRecord

	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	replyLatency    *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

// providerRecord pairs a domain.PerformanceRecord with its own lock so that
// updates to one provider never block reads or writes for another.
type providerRecord struct {
	mu  sync.Mutex
	rec domain.PerformanceRecord
}

// NewPerformanceTracker builds a tracker with its own private Prometheus
// registry, mirroring how the provider registry and circuit breaker each
// keep their own lock rather than sharing global state.
func NewPerformanceTracker() *PerformanceTracker {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PerformanceTracker{
		records:  make(map[string]*providerRecord),
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_orchestrator_provider_requests_total",
				Help: "Total number of provider requests by outcome.",
			},
			[]string{"provider", "outcome"},
		),
		replyLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_orchestrator_reply_duration_seconds",
				Help:    "Reply latency in seconds by provider.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "llm_orchestrator_circuit_breaker_state",
				Help: "Circuit breaker state by provider (0=closed, 1=half-open, 2=open).",
			},
			[]string{"provider"},
		),
	}
}

// Registry returns the private Prometheus registry so a caller can wire it
// into an HTTP exposition handler of its own choosing.
func (t *PerformanceTracker) Registry() *prometheus.Registry {
	return t.registry
}

func (t *PerformanceTracker) recordFor(provider string) *providerRecord {
	t.mu.RLock()
	r, ok := t.records[provider]
	t.mu.RUnlock()
	if ok {
		return r
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.records[provider]; ok {
		return r
	}
	r = &providerRecord{}
	t.records[provider] = r
	return r
}

// RecordSuccess records a successful reply: its latency, score, token count,
// and whether it was the winning reply in its orchestration round.
func (t *PerformanceTracker) RecordSuccess(provider string, latencyMs int64, score float64, tokens int64, won bool) {
	r := t.recordFor(provider)
	r.mu.Lock()
	r.rec.TotalRequests++
	r.rec.Successes++
	r.rec.TotalLatencyMs += latencyMs
	r.rec.TotalScore += score
	r.rec.TotalTokens += tokens
	if won {
		r.rec.Wins++
	}
	r.mu.Unlock()

	t.requestsTotal.WithLabelValues(provider, "success").Inc()
	t.replyLatency.WithLabelValues(provider).Observe(float64(latencyMs) / 1000)
}

// RecordFailure records a failed provider call. Cancellation is still a
// failure from the tracker's point of view even though it must not count
// against the circuit breaker.
func (t *PerformanceTracker) RecordFailure(provider string) {
	r := t.recordFor(provider)
	r.mu.Lock()
	r.rec.TotalRequests++
	r.rec.Failures++
	r.mu.Unlock()

	t.requestsTotal.WithLabelValues(provider, "failure").Inc()
}

// BreakerState is the tri-state shape a circuit breaker can report, mapped
// to the gauge values the metric documents.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// SetBreakerState publishes the current circuit breaker state for provider.
func (t *PerformanceTracker) SetBreakerState(provider string, state BreakerState) {
	t.breakerState.WithLabelValues(provider).Set(float64(state))
}

// GetAnalytics returns a derived, read-only snapshot for provider. The
// second return value is false if no record exists yet.
func (t *PerformanceTracker) GetAnalytics(provider string) (domain.Analytics, bool) {
	t.mu.RLock()
	r, ok := t.records[provider]
	t.mu.RUnlock()
	if !ok {
		return domain.Analytics{}, false
	}

	r.mu.Lock()
	rec := r.rec
	r.mu.Unlock()

	return analyticsFromRecord(provider, rec), true
}

// GetAllAnalytics returns a snapshot for every provider seen so far.
func (t *PerformanceTracker) GetAllAnalytics() map[string]domain.Analytics {
	t.mu.RLock()
	names := make([]string, 0, len(t.records))
	for name := range t.records {
		names = append(names, name)
	}
	t.mu.RUnlock()

	out := make(map[string]domain.Analytics, len(names))
	for _, name := range names {
		if a, ok := t.GetAnalytics(name); ok {
			out[name] = a
		}
	}
	return out
}

func analyticsFromRecord(provider string, rec domain.PerformanceRecord) domain.Analytics {
	a := domain.Analytics{ProviderName: provider, TotalRequests: rec.TotalRequests}
	if rec.TotalRequests == 0 {
		return a
	}

	a.SuccessRate = float64(rec.Successes) / float64(rec.TotalRequests)
	if rec.Successes > 0 {
		a.AverageLatency = float64(rec.TotalLatencyMs) / float64(rec.Successes)
		a.AverageScore = rec.TotalScore / float64(rec.Successes)
		a.AverageTokens = float64(rec.TotalTokens) / float64(rec.Successes)
		a.WinRate = float64(rec.Wins) / float64(rec.Successes)
	}
	return a
}
