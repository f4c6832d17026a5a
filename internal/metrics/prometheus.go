package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Vendor metrics
	vendorRequestsTotal   *prometheus.CounterVec
	vendorRequestDuration *prometheus.HistogramVec
	tokenStrategyAttempts *prometheus.CounterVec
	tokenOutcomesTotal    *prometheus.CounterVec
	tokenCacheTotal       *prometheus.CounterVec
	designPollAttempts    *prometheus.CounterVec
	designPollOutcomes    *prometheus.CounterVec

	// Registrar metrics
	registrationAttemptsTotal *prometheus.CounterVec
	registrationOutcomesTotal *prometheus.CounterVec
	registrationDuration      prometheus.Histogram
	retryAttemptsTotal        *prometheus.CounterVec
	ordersInFlight            prometheus.Gauge

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Reconciler metrics
	pendingOrders       prometheus.Gauge
	registrationLatency prometheus.Histogram

	// Leader election metrics
	leaderStatus        prometheus.Gauge
	leaderAcquiredTotal prometheus.Counter
	leaderLostTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
// Metrics that fail to register still record, they are just never scraped.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initVendorMetrics(reg)
	s.initRegistrarMetrics(reg)
	s.initEventBusMetrics(reg)
	s.initReconcilerMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initVendorMetrics(reg prometheus.Registerer) {
	s.vendorRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_vendor_requests_total",
		Help: "Total number of Zakeke API requests by endpoint and status class.",
	}, []string{"endpoint", "status_class"})

	s.vendorRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "merchlab_vendor_request_duration_seconds",
		Help:    "Zakeke API request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})

	s.tokenStrategyAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_token_strategy_attempts_total",
		Help: "Total number of token acquisition attempts per strategy.",
	}, []string{"strategy", "result"})

	s.tokenOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_token_outcomes_total",
		Help: "Total number of token acquisition runs by final outcome.",
	}, []string{"outcome"})

	s.tokenCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_token_cache_total",
		Help: "Total number of token cache lookups by result.",
	}, []string{"result"})

	s.designPollAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_design_poll_attempts_total",
		Help: "Total number of design readiness checks by resulting state.",
	}, []string{"state"})

	s.designPollOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_design_poll_outcomes_total",
		Help: "Total number of completed design polls by outcome.",
	}, []string{"outcome"})

	s.register(reg, s.vendorRequestsTotal, "merchlab_vendor_requests_total")
	s.register(reg, s.vendorRequestDuration, "merchlab_vendor_request_duration_seconds")
	s.register(reg, s.tokenStrategyAttempts, "merchlab_token_strategy_attempts_total")
	s.register(reg, s.tokenOutcomesTotal, "merchlab_token_outcomes_total")
	s.register(reg, s.tokenCacheTotal, "merchlab_token_cache_total")
	s.register(reg, s.designPollAttempts, "merchlab_design_poll_attempts_total")
	s.register(reg, s.designPollOutcomes, "merchlab_design_poll_outcomes_total")
}

func (s *PrometheusSink) initRegistrarMetrics(reg prometheus.Registerer) {
	s.registrationAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_order_registration_attempts_total",
		Help: "Total number of order registration attempts against Zakeke.",
	}, []string{"attempt", "status_class"})

	s.registrationOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_order_registration_outcomes_total",
		Help: "Total number of final registration outcomes per order.",
	}, []string{"outcome"})

	s.registrationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "merchlab_order_registration_duration_seconds",
		Help:    "Order registration request latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_registrar_retry_attempts_total",
		Help: "Total number of retry attempts (excludes first attempt).",
	}, []string{"retryable"})

	s.ordersInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "merchlab_registrar_orders_in_flight",
		Help: "Number of orders currently being registered.",
	})

	s.register(reg, s.registrationAttemptsTotal, "merchlab_order_registration_attempts_total")
	s.register(reg, s.registrationOutcomesTotal, "merchlab_order_registration_outcomes_total")
	s.register(reg, s.registrationDuration, "merchlab_order_registration_duration_seconds")
	s.register(reg, s.retryAttemptsTotal, "merchlab_registrar_retry_attempts_total")
	s.register(reg, s.ordersInFlight, "merchlab_registrar_orders_in_flight")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "merchlab_eventbus_buffer_size",
		Help: "Current number of order events in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "merchlab_eventbus_buffer_capacity",
		Help: "Configured capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "merchlab_eventbus_buffer_saturation",
		Help: "Event bus buffer fill ratio between 0 and 1.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "merchlab_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "merchlab_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "merchlab_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "merchlab_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "merchlab_eventbus_emit_errors_total")
}

func (s *PrometheusSink) initReconcilerMetrics(reg prometheus.Registerer) {
	s.pendingOrders = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "merchlab_reconciler_pending_orders",
		Help: "Orders found still pending registration on the last reconcile pass.",
	})
	s.registrationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "merchlab_order_registration_latency_seconds",
		Help:    "Time from order creation to successful vendor registration.",
		Buckets: []float64{1, 5, 30, 60, 300, 900, 3600},
	})

	s.register(reg, s.pendingOrders, "merchlab_reconciler_pending_orders")
	s.register(reg, s.registrationLatency, "merchlab_order_registration_latency_seconds")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "merchlab_leader_status",
		Help: "1 when this instance holds the reconciler lock, 0 otherwise.",
	})
	s.leaderAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "merchlab_leader_acquired_total",
		Help: "Total number of times this instance became leader.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "merchlab_leader_lost_total",
		Help: "Total number of times this instance lost leadership, by reason.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "merchlab_leader_status")
	s.register(reg, s.leaderAcquiredTotal, "merchlab_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "merchlab_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Vendor metrics implementation

func (s *PrometheusSink) VendorRequestCompleted(endpoint, statusClass string, duration time.Duration) {
	s.vendorRequestsTotal.WithLabelValues(endpoint, statusClass).Inc()
	s.vendorRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (s *PrometheusSink) TokenStrategyAttempt(strategy string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	s.tokenStrategyAttempts.WithLabelValues(strategy, result).Inc()
}

func (s *PrometheusSink) TokenOutcome(outcome string) {
	s.tokenOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) TokenCacheLookup(result string) {
	s.tokenCacheTotal.WithLabelValues(result).Inc()
}

func (s *PrometheusSink) DesignPollAttempt(state string) {
	s.designPollAttempts.WithLabelValues(state).Inc()
}

func (s *PrometheusSink) DesignPollOutcome(outcome string) {
	s.designPollOutcomes.WithLabelValues(outcome).Inc()
}

// Registrar metrics implementation

func (s *PrometheusSink) RegistrationAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.registrationAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.registrationDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) RegistrationOutcome(outcome string) {
	s.registrationOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RetryAttempt(retryable bool) {
	label := "false"
	if retryable {
		label = "true"
	}
	s.retryAttemptsTotal.WithLabelValues(label).Inc()
}

func (s *PrometheusSink) OrdersInFlightIncr() {
	s.ordersInFlight.Inc()
}

func (s *PrometheusSink) OrdersInFlightDecr() {
	s.ordersInFlight.Dec()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Reconciler metrics implementation

func (s *PrometheusSink) PendingOrdersUpdate(count int) {
	s.pendingOrders.Set(float64(count))
}

func (s *PrometheusSink) RegistrationLatencyObserve(latencySeconds float64) {
	s.registrationLatency.Observe(latencySeconds)
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
		return
	}
	s.leaderStatus.Set(0)
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquiredTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}
