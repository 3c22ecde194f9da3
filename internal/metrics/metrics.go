// Package metrics holds the Prometheus collectors for hardlinks.
//
// A Metrics value owns its collectors and registers them on the registerer
// passed to New, so tests can use a private registry. All methods are safe
// to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors.
type Metrics struct {
	hookExecutions      *prometheus.CounterVec
	hookDuration        *prometheus.HistogramVec
	linksCreated        prometheus.Counter
	propagationUpdates  *prometheus.CounterVec
	allocatorCollisions prometheus.Counter
	detaches            *prometheus.CounterVec
	directInvocations   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		hookExecutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hardlinks_hook_executions_total",
			Help: "Hook executions by event and outcome",
		}, []string{"event", "outcome"}),

		hookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hardlinks_hook_duration_seconds",
			Help:    "Time spent handling a hook",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"event"}),

		linksCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "hardlinks_links_created_total",
			Help: "Hard links created",
		}),

		propagationUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hardlinks_propagation_updates_total",
			Help: "Sibling physical path updates by result",
		}, []string{"result"}),

		allocatorCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "hardlinks_allocator_collisions_total",
			Help: "Group id candidates rejected because they were already in use",
		}),

		detaches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hardlinks_detaches_total",
			Help: "Deletion guard verdicts by action",
		}, []string{"action"}),

		directInvocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hardlinks_direct_invocations_total",
			Help: "Direct rule invocations by operation and status",
		}, []string{"operation", "status"}),
	}
}

// HookExecuted records one hook execution.
func (m *Metrics) HookExecuted(event, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.hookExecutions.WithLabelValues(event, outcome).Inc()
	m.hookDuration.WithLabelValues(event).Observe(seconds)
}

// LinkCreated records a successful link creation.
func (m *Metrics) LinkCreated() {
	if m == nil {
		return
	}
	m.linksCreated.Inc()
}

// PropagationResult records sibling updates.
func (m *Metrics) PropagationResult(updated, failed int) {
	if m == nil {
		return
	}
	m.propagationUpdates.WithLabelValues("updated").Add(float64(updated))
	m.propagationUpdates.WithLabelValues("failed").Add(float64(failed))
}

// AllocatorCollision records a rejected group id candidate.
func (m *Metrics) AllocatorCollision() {
	if m == nil {
		return
	}
	m.allocatorCollisions.Inc()
}

// GuardVerdict records a deletion guard decision.
func (m *Metrics) GuardVerdict(action string) {
	if m == nil {
		return
	}
	m.detaches.WithLabelValues(action).Inc()
}

// DirectInvocation records a direct rule invocation.
func (m *Metrics) DirectInvocation(operation, status string) {
	if m == nil {
		return
	}
	m.directInvocations.WithLabelValues(operation, status).Inc()
}
