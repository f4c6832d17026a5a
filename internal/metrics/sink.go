package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Vendor metrics
	VendorRequestCompleted(endpoint, statusClass string, duration time.Duration)
	TokenStrategyAttempt(strategy string, success bool)
	TokenOutcome(outcome string)
	TokenCacheLookup(result string)
	DesignPollAttempt(state string)
	DesignPollOutcome(outcome string)

	// Registrar metrics
	RegistrationAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	RegistrationOutcome(outcome string)
	RetryAttempt(retryable bool)
	OrdersInFlightIncr()
	OrdersInFlightDecr()

	// EventBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()

	// Reconciler metrics
	PendingOrdersUpdate(count int)
	RegistrationLatencyObserve(latencySeconds float64)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Outcome constants for TokenOutcome, DesignPollOutcome and RegistrationOutcome.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// StatusClass constants for VendorRequestCompleted and RegistrationAttemptCompleted.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a status code and error to a status class.
// A non-nil err means no HTTP response was received.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		return classifyError(err)
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}

func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusClassTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return StatusClassConnectionError
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return StatusClassConnectionError
	}

	// Wrapped errors that lost their type still carry the message.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return StatusClassTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") || strings.Contains(msg, "dial"):
		return StatusClassConnectionError
	default:
		return StatusClassOtherError
	}
}
