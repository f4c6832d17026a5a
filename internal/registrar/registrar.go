// Package registrar registers checked-out orders with Zakeke in the
// background, retrying transient vendor faults on a fixed backoff schedule.
package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/metrics"
	"github.com/TatisVivas/zakekeSample/internal/vendor"
)

var defaultBackoff = []time.Duration{
	0,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

const maxAttempts = 4

// DefaultCallTimeout is the vendor call timeout assumed when sizing the claim lease.
const DefaultCallTimeout = 30 * time.Second

// callsPerAttempt bounds the vendor calls in one attempt: every token
// strategy plus the order POST.
var callsPerAttempt = len(vendor.DefaultStrategies()) + 1

// MaxRetryDuration is the worst-case time one order spends in the retry loop,
// excluding the vendor calls themselves.
func MaxRetryDuration() time.Duration {
	var total time.Duration
	for i := 1; i < maxAttempts && i < len(defaultBackoff); i++ {
		total += defaultBackoff[i]
	}
	return total
}

// MaxRegistrationDuration is the worst-case time one order stays claimed
// when every vendor call runs to callTimeout.
func MaxRegistrationDuration(callTimeout time.Duration) time.Duration {
	return MaxRetryDuration() + time.Duration(maxAttempts*callsPerAttempt)*callTimeout
}

// DefaultDrainTimeout is the maximum time to wait for buffered events during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// ErrStatusTransitionDenied is returned when a registration update would
// leave a terminal state (registered/failed).
var ErrStatusTransitionDenied = errors.New("status transition denied: order already in terminal state")

type Store interface {
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	// ClaimOrder marks the order as registering until leaseUntil. It reports
	// false when another registrar holds a live claim or the order is terminal.
	// Only the claim holder posts the order to the vendor.
	ClaimOrder(ctx context.Context, id uuid.UUID, leaseUntil time.Time) (bool, error)
	// ReleaseOrder returns a claimed order to pending.
	ReleaseOrder(ctx context.Context, id uuid.UUID) error
	InsertRegistrationAttempt(ctx context.Context, attempt domain.RegistrationAttempt) error
	// UpdateOrderRegistration sets the registration status. Implementations MUST
	// reject transitions from terminal states and return
	// ErrStatusTransitionDenied. This keeps replays idempotent.
	UpdateOrderRegistration(ctx context.Context, orderID uuid.UUID, status domain.RegistrationStatus, vendorOrderID string) error
}

// OrderClient is the vendor call the registrar needs. *vendor.Client satisfies it.
type OrderClient interface {
	RegisterOrder(ctx context.Context, payload json.RawMessage, token domain.Token) (json.RawMessage, error)
}

// MetricsSink defines the interface for recording registrar metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	RegistrationAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	RegistrationOutcome(outcome string)
	RetryAttempt(retryable bool)
	OrdersInFlightIncr()
	OrdersInFlightDecr()
	RegistrationLatencyObserve(latencySeconds float64)
}

type Registrar struct {
	store        Store
	tokens       vendor.TokenSource
	client       OrderClient
	metrics      MetricsSink // optional, nil = disabled
	backoff      []time.Duration
	lease        time.Duration
	drainTimeout time.Duration
	now          func() time.Time
}

func New(store Store, tokens vendor.TokenSource, client OrderClient) *Registrar {
	return &Registrar{
		store:        store,
		tokens:       tokens,
		client:       client,
		backoff:      defaultBackoff,
		lease:        MaxRegistrationDuration(DefaultCallTimeout),
		drainTimeout: DefaultDrainTimeout,
		now:          time.Now,
	}
}

// WithMetrics attaches a metrics sink to the registrar.
func (r *Registrar) WithMetrics(sink MetricsSink) *Registrar {
	r.metrics = sink
	return r
}

// WithCallTimeout sizes the claim lease for vendor calls bounded by d.
func (r *Registrar) WithCallTimeout(d time.Duration) *Registrar {
	if d > 0 {
		r.lease = MaxRegistrationDuration(d)
	}
	return r
}

// WithDrainTimeout bounds how long Run keeps registering buffered events after shutdown.
func (r *Registrar) WithDrainTimeout(d time.Duration) *Registrar {
	if d > 0 {
		r.drainTimeout = d
	}
	return r
}

// Run processes events from the channel until context is cancelled.
// After cancellation, it drains remaining buffered events with a timeout.
func (r *Registrar) Run(ctx context.Context, ch <-chan domain.OrderEvent) {
	for {
		select {
		case <-ctx.Done():
			r.drain(ch)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := r.Register(ctx, event); err != nil {
				log.Printf("registrar: order=%s error: %v", event.OrderID, err)
			}
		}
	}
}

// drain processes remaining events in the channel buffer after shutdown signal.
// Uses a background context since the main context is already cancelled.
func (r *Registrar) drain(ch <-chan domain.OrderEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("registrar: drain timeout, processed %d events", count)
			}
			return
		case event, ok := <-ch:
			if !ok {
				log.Printf("registrar: drain complete, processed %d events", count)
				return
			}
			if err := r.Register(drainCtx, event); err != nil {
				log.Printf("registrar: drain error: %v", err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("registrar: drain complete, processed %d events", count)
			}
			return
		}
	}
}

// Register sends one order to the vendor, retrying transient faults.
// A nil return means the order reached a terminal registration state
// (or already was in one).
func (r *Registrar) Register(ctx context.Context, event domain.OrderEvent) error {
	if r.metrics != nil {
		r.metrics.OrdersInFlightIncr()
		defer r.metrics.OrdersInFlightDecr()
	}

	order, err := r.store.GetOrder(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order.Registration.Terminal() {
		log.Printf("registrar: order=%s already %s, skipping", order.ID, order.Registration)
		return nil
	}

	payload, details, err := BuildPayload(order)
	if err != nil {
		log.Printf("registrar: order=%s invalid items: %v", order.ID, err)
		r.recordOutcome(metrics.OutcomeFailed)
		return r.finalize(ctx, order, domain.RegistrationFailed, "")
	}
	if details == 0 {
		// Nothing customized: the vendor has nothing to produce.
		log.Printf("registrar: order=%s has no customized items, nothing to register", order.ID)
		return r.finalize(ctx, order, domain.RegistrationRegistered, "")
	}

	claimed, err := r.store.ClaimOrder(ctx, order.ID, r.now().Add(r.lease))
	if err != nil {
		return fmt.Errorf("claim order: %w", err)
	}
	if !claimed {
		log.Printf("registrar: order=%s claimed elsewhere, skipping", order.ID)
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if r.metrics != nil {
				r.metrics.RetryAttempt(vendor.IsTransient(lastErr))
			}

			idx := attempt - 1
			if idx >= len(r.backoff) {
				idx = len(r.backoff) - 1
			}
			backoff := r.backoff[idx]

			log.Printf("registrar: order=%s attempt=%d backoff=%s", order.ID, attempt, backoff)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				r.release(ctx, order.ID)
				return ctx.Err()
			case <-timer.C:
			}
		}

		vendorOrderID, err := r.attempt(ctx, order, attempt, payload)
		if err == nil {
			log.Printf("registrar: order=%s registered attempt=%d vendor_order=%s", order.ID, attempt, vendorOrderID)
			r.recordOutcome(metrics.OutcomeSuccess)
			if r.metrics != nil {
				r.metrics.RegistrationLatencyObserve(r.now().Sub(order.CreatedAt).Seconds())
			}
			return r.finalize(ctx, order, domain.RegistrationRegistered, vendorOrderID)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		if !vendor.IsTransient(err) {
			log.Printf("registrar: order=%s non-retryable: %v", order.ID, err)
			break
		}
		log.Printf("registrar: order=%s attempt=%d failed: %v", order.ID, attempt, err)
	}

	log.Printf("registrar: order=%s failed: %v", order.ID, lastErr)
	r.recordOutcome(metrics.OutcomeFailed)
	return r.finalize(ctx, order, domain.RegistrationFailed, "")
}

// attempt acquires a fresh S2S token for the order's customer and posts the order.
func (r *Registrar) attempt(ctx context.Context, order domain.Order, n int, payload json.RawMessage) (string, error) {
	startedAt := r.now().UTC()

	resp, err := r.send(ctx, order, payload)

	finishedAt := r.now().UTC()
	record := domain.RegistrationAttempt{
		ID:         uuid.New(),
		OrderID:    order.ID,
		Attempt:    n,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	var noResponse error
	if err != nil {
		record.Error = err.Error()
		if fe, ok := vendor.AsFault(err); ok {
			record.StatusCode = fe.StatusCode
			if fe.StatusCode == 0 {
				noResponse = err
			}
		} else {
			noResponse = err
		}
	} else {
		record.StatusCode = 200
	}

	if r.metrics != nil {
		r.metrics.RegistrationAttemptCompleted(n, metrics.ClassifyStatus(record.StatusCode, noResponse), finishedAt.Sub(startedAt))
	}
	if err := r.store.InsertRegistrationAttempt(ctx, record); err != nil {
		log.Printf("registrar: failed to record attempt: %v", err)
	}

	if err != nil {
		return "", err
	}
	return vendorOrderID(resp), nil
}

func (r *Registrar) send(ctx context.Context, order domain.Order, payload json.RawMessage) (json.RawMessage, error) {
	token, err := r.tokens.FetchToken(ctx, domain.TokenRequest{
		AccessType: domain.AccessTypeS2S,
		CustomerID: order.CustomerID,
	})
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	return r.client.RegisterOrder(ctx, payload, token)
}

func (r *Registrar) finalize(ctx context.Context, order domain.Order, status domain.RegistrationStatus, vendorOrderID string) error {
	err := r.store.UpdateOrderRegistration(ctx, order.ID, status, vendorOrderID)
	if errors.Is(err, ErrStatusTransitionDenied) {
		// Another registrar (or a reconciler replay) got there first.
		log.Printf("registrar: order=%s already terminal, skipping status update", order.ID)
		return nil
	}
	return err
}

// release hands the order back to pending when no vendor call is in
// flight. A cancelled call keeps its claim until the lease lapses, since the
// vendor may already have accepted the order.
func (r *Registrar) release(ctx context.Context, id uuid.UUID) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.store.ReleaseOrder(releaseCtx, id); err != nil {
		log.Printf("registrar: order=%s release failed, claim lapses on its own: %v", id, err)
	}
}

func (r *Registrar) recordOutcome(outcome string) {
	if r.metrics != nil {
		r.metrics.RegistrationOutcome(outcome)
	}
}

type orderPayload struct {
	OrderCode string        `json:"orderCode"`
	OrderDate string        `json:"orderDate"`
	SessionID string        `json:"sessionID"`
	Total     int64         `json:"total"`
	Details   []orderDetail `json:"details"`
}

type orderDetail struct {
	OrderDetailCode string `json:"orderDetailCode"`
	SKU             string `json:"sku"`
	DesignID        string `json:"designID"`
	ModelUnitPrice  int64  `json:"modelUnitPrice"`
	DesignUnitPrice int64  `json:"designUnitPrice"`
	Quantity        int    `json:"quantity"`
}

// BuildPayload renders the vendor order document. Only customized lines
// (those with a design) are sent; the count of sent lines is returned.
func BuildPayload(order domain.Order) (json.RawMessage, int, error) {
	items, err := order.DecodeItems()
	if err != nil {
		return nil, 0, err
	}

	p := orderPayload{
		OrderCode: order.Code,
		OrderDate: order.OrderDate.UTC().Format(time.RFC3339),
		SessionID: order.ID.String(),
		Total:     order.Total,
		Details:   []orderDetail{},
	}
	for i, item := range items {
		if item.DesignID == "" {
			continue
		}
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		p.Details = append(p.Details, orderDetail{
			OrderDetailCode: order.Code + "-" + strconv.Itoa(i+1),
			SKU:             item.SKU,
			DesignID:        item.DesignID,
			ModelUnitPrice:  item.UnitPrice,
			Quantity:        quantity,
		})
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, 0, err
	}
	return raw, len(p.Details), nil
}

// vendorOrderID pulls the vendor's identifier out of a registration response.
func vendorOrderID(resp json.RawMessage) string {
	var body map[string]any
	if err := json.Unmarshal(resp, &body); err != nil {
		return ""
	}
	for _, key := range []string{"orderID", "orderId", "id"} {
		switch v := body[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
