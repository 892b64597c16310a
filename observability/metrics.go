package observability

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// moduleMetrics tracks RPC-layer activity across treasury entry points.
type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	throttle *prometheus.CounterVec
}

// engineMetrics holds proposal lifecycle and policy gate metrics.
// native/treasury does not import this package and records nothing here.
type engineMetrics struct {
	proposalsByStatus *prometheus.CounterVec
	gateRejections    *prometheus.CounterVec
	dailySpent        *prometheus.GaugeVec
	weeklySpent       *prometheus.GaugeVec
	insuranceLocked   *prometheus.GaugeVec
	reputationScore   *prometheus.HistogramVec
	batchOutcome      *prometheus.CounterVec
}

var (
	moduleOnce     sync.Once
	moduleRegistry *moduleMetrics

	engineOnce     sync.Once
	engineRegistry *engineMetrics
)

// Module returns the lazily-initialised metrics registry for RPC transport
// metrics. rpc.Server serves MetricsHandler but does not record into it.
func Module() *moduleMetrics {
	moduleOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "treasury",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "treasury",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and numeric code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "treasury",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttle: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "treasury",
				Subsystem: "rpc",
				Name:      "throttled_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttle,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an RPC call.
func (m *moduleMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied method.
func (m *moduleMetrics) RecordThrottle(method string) {
	if m == nil {
		return
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "unknown"
	}
	m.throttle.WithLabelValues(method).Inc()
}

// Engine returns the lazily-initialised metrics registry for the proposal
// lifecycle engine.
func Engine() *engineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &engineMetrics{
			proposalsByStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "treasury",
				Subsystem: "engine",
				Name:      "proposal_transitions_total",
				Help:      "Count of proposal status transitions.",
			}, []string{"status"}),
			gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "treasury",
				Subsystem: "engine",
				Name:      "policy_gate_rejections_total",
				Help:      "Count of policy evaluator gate rejections segmented by gate.",
			}, []string{"gate"}),
			dailySpent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "treasury",
				Subsystem: "budget",
				Name:      "daily_spent",
				Help:      "Current daily accumulator value per token.",
			}, []string{"token"}),
			weeklySpent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "treasury",
				Subsystem: "budget",
				Name:      "weekly_spent",
				Help:      "Current weekly accumulator value per token.",
			}, []string{"token"}),
			insuranceLocked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "treasury",
				Subsystem: "insurance",
				Name:      "locked_balance",
				Help:      "Aggregate insurance stake currently locked per token.",
			}, []string{"token"}),
			reputationScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "treasury",
				Subsystem: "reputation",
				Name:      "score",
				Help:      "Distribution of reputation scores observed on read-modify-write.",
				Buckets:   []float64{0, 100, 250, 500, 750, 900, 1000},
			}, []string{"event"}),
			batchOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "treasury",
				Subsystem: "batch",
				Name:      "executions_total",
				Help:      "Count of batch execution attempts segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			engineRegistry.proposalsByStatus,
			engineRegistry.gateRejections,
			engineRegistry.dailySpent,
			engineRegistry.weeklySpent,
			engineRegistry.insuranceLocked,
			engineRegistry.reputationScore,
			engineRegistry.batchOutcome,
		)
	})
	return engineRegistry
}

// RecordTransition increments the transition counter for the destination status.
func (m *engineMetrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.proposalsByStatus.WithLabelValues(status).Inc()
}

// RecordGateRejection increments the rejection counter for the named policy gate.
func (m *engineMetrics) RecordGateRejection(gate string) {
	if m == nil {
		return
	}
	m.gateRejections.WithLabelValues(gate).Inc()
}

// SetDailySpent records the current daily accumulator value for a token.
func (m *engineMetrics) SetDailySpent(token string, amount float64) {
	if m == nil {
		return
	}
	m.dailySpent.WithLabelValues(token).Set(amount)
}

// SetWeeklySpent records the current weekly accumulator value for a token.
func (m *engineMetrics) SetWeeklySpent(token string, amount float64) {
	if m == nil {
		return
	}
	m.weeklySpent.WithLabelValues(token).Set(amount)
}

// SetInsuranceLocked records the aggregate insurance stake locked for a token.
func (m *engineMetrics) SetInsuranceLocked(token string, amount float64) {
	if m == nil {
		return
	}
	m.insuranceLocked.WithLabelValues(token).Set(amount)
}

// ObserveReputationScore records a reputation score sample taken during the
// named lifecycle event (e.g. "propose", "execute", "reject").
func (m *engineMetrics) ObserveReputationScore(event string, score int) {
	if m == nil {
		return
	}
	m.reputationScore.WithLabelValues(event).Observe(float64(score))
}

// RecordBatchOutcome increments the batch execution counter for "executed" or
// "failed" proposals.
func (m *engineMetrics) RecordBatchOutcome(outcome string) {
	if m == nil {
		return
	}
	m.batchOutcome.WithLabelValues(outcome).Inc()
}

// MetricsHandler exposes the default Prometheus registry over HTTP, for
// mounting under /metrics on the RPC server.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
