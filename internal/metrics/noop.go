package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) VendorRequestCompleted(endpoint, statusClass string, d time.Duration)          {}
func (n *NoopSink) TokenStrategyAttempt(strategy string, success bool)                            {}
func (n *NoopSink) TokenOutcome(outcome string)                                                   {}
func (n *NoopSink) TokenCacheLookup(result string)                                                {}
func (n *NoopSink) DesignPollAttempt(state string)                                                {}
func (n *NoopSink) DesignPollOutcome(outcome string)                                              {}
func (n *NoopSink) RegistrationAttemptCompleted(attempt int, statusClass string, d time.Duration) {}
func (n *NoopSink) RegistrationOutcome(outcome string)                                            {}
func (n *NoopSink) RetryAttempt(retryable bool)                                                   {}
func (n *NoopSink) OrdersInFlightIncr()                                                           {}
func (n *NoopSink) OrdersInFlightDecr()                                                           {}
func (n *NoopSink) BufferSizeUpdate(size int)                                                     {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                                {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                                     {}
func (n *NoopSink) EmitError()                                                                    {}
func (n *NoopSink) PendingOrdersUpdate(count int)                                                 {}
func (n *NoopSink) RegistrationLatencyObserve(latencySeconds float64)                             {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                              {}
func (n *NoopSink) LeaderAcquired()                                                               {}
func (n *NoopSink) LeaderLost(reason string)                                                      {}
