// Package prometheus exports view maintenance metrics to Prometheus.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zoobzio/lenz"
)

// Provider implements lenz.MetricsProvider on a Prometheus registry.
// Register it on a view with View.Metrics; one Provider can be shared
// across views whose series should aggregate.
type Provider struct {
	stateTransitions *prometheus.CounterVec
	changesReceived  *prometheus.CounterVec
	applies          *prometheus.CounterVec
	applyFailures    *prometheus.CounterVec
	resetEscalations prometheus.Counter
	applyDuration    prometheus.Histogram
}

// New creates a Provider with all series registered on reg. Pass
// prometheus.DefaultRegisterer to use the default registry.
func New(reg prometheus.Registerer) *Provider {
	factory := promauto.With(reg)
	return &Provider{
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lenz",
			Subsystem: "view",
			Name:      "state_transitions_total",
			Help:      "Total view state transitions",
		}, []string{"from", "to"}),
		changesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lenz",
			Subsystem: "view",
			Name:      "changes_received_total",
			Help:      "Total source changes received by views",
		}, []string{"op"}),
		applies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lenz",
			Subsystem: "view",
			Name:      "applies_total",
			Help:      "Total changes patched into view output",
		}, []string{"op"}),
		applyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lenz",
			Subsystem: "view",
			Name:      "apply_failures_total",
			Help:      "Total change applications that failed, by stage",
		}, []string{"stage"}),
		resetEscalations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lenz",
			Subsystem: "view",
			Name:      "reset_escalations_total",
			Help:      "Total batches collapsed into a reset",
		}),
		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lenz",
			Subsystem: "view",
			Name:      "apply_duration_seconds",
			Help:      "Time to patch and deliver one change",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
	}
}

// OnStateChange records a view state transition.
func (p *Provider) OnStateChange(from, to lenz.State) {
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// OnChangeReceived records an inbound source change.
func (p *Provider) OnChangeReceived(op lenz.Op) {
	p.changesReceived.WithLabelValues(op.String()).Inc()
}

// OnApplySuccess records a patched and delivered change.
func (p *Provider) OnApplySuccess(op lenz.Op, duration time.Duration) {
	p.applies.WithLabelValues(op.String()).Inc()
	p.applyDuration.Observe(duration.Seconds())
}

// OnApplyFailure records a failed change application.
func (p *Provider) OnApplyFailure(stage string, duration time.Duration) {
	p.applyFailures.WithLabelValues(stage).Inc()
	p.applyDuration.Observe(duration.Seconds())
}

// OnResetEscalation records a batch collapsed into a reset.
func (p *Provider) OnResetEscalation(_, _ int) {
	p.resetEscalations.Inc()
}

var _ lenz.MetricsProvider = (*Provider)(nil)
