package lenz

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key view maintenance events.
type MetricsProvider interface {
	// OnStateChange is called when the view transitions between states.
	OnStateChange(from, to State)

	// OnChangeReceived is called when a source change reaches the view.
	OnChangeReceived(op Op)

	// OnApplySuccess is called when a change has been patched into the
	// output and delivered. Duration covers patching plus delivery.
	OnApplySuccess(op Op, duration time.Duration)

	// OnApplyFailure is called when a change fails. Stage indicates where:
	// "validate", "apply", or "notify".
	OnApplyFailure(stage string, duration time.Duration)

	// OnResetEscalation is called when a batch exceeds the reset threshold
	// and is collapsed into a single reset.
	OnResetEscalation(batchLen, outputLen int)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)                 {}
func (NoOpMetricsProvider) OnChangeReceived(_ Op)                    {}
func (NoOpMetricsProvider) OnApplySuccess(_ Op, _ time.Duration)     {}
func (NoOpMetricsProvider) OnApplyFailure(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnResetEscalation(_, _ int)               {}
