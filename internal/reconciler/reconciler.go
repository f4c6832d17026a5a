// Package reconciler re-emits orders stuck in the pending registration state.
//
// An order is stuck when checkout stored it but the registration event was
// lost (buffer overflow, crash between commit and emit, or shutdown during
// backoff), or when a registrar died holding its claim. The reconciler scans
// on a schedule for pending orders older than a threshold, and for claims
// whose lease lapsed, and re-emits them to the event bus. Replays are safe:
// only the registrar holding the claim posts an order, and the store refuses
// to move an order out of a terminal state.
package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/TatisVivas/zakekeSample/internal/cron"
	"github.com/TatisVivas/zakekeSample/internal/domain"
)

// Store defines the interface for fetching orders awaiting registration.
type Store interface {
	GetPendingOrders(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Order, error)
}

// EventEmitter defines the interface for emitting order events.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.OrderEvent) error
}

// MetricsSink records the size of the pending backlog after each scan.
type MetricsSink interface {
	PendingOrdersUpdate(count int)
}

// Config holds reconciler configuration.
type Config struct {
	// Schedule decides when scans run.
	Schedule cron.Schedule

	// Threshold is the age after which a pending order is considered stuck.
	// It must exceed the registrar's retry window.
	Threshold time.Duration

	// BatchSize is the maximum number of orders re-emitted per cycle.
	BatchSize int
}

// DefaultConfig returns the default reconciler configuration: every five
// minutes, for orders pending longer than thirty.
func DefaultConfig() Config {
	sched, _ := cron.Parse("*/5 * * * *", "")
	return Config{
		Schedule:  sched,
		Threshold: 30 * time.Minute,
		BatchSize: 100,
	}
}

// Reconciler detects stuck orders and re-emits them.
type Reconciler struct {
	config  Config
	store   Store
	emitter EventEmitter
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

// New creates a new Reconciler.
func New(config Config, store Store, emitter EventEmitter) *Reconciler {
	return &Reconciler{
		config:  config,
		store:   store,
		emitter: emitter,
		clock:   time.Now,
	}
}

// WithMetrics attaches a metrics sink to the reconciler.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	log.Printf("reconciler: started (threshold=%s, batch=%d)", r.config.Threshold, r.config.BatchSize)

	// Run immediately on startup, then on schedule
	r.runCycle(ctx)

	for {
		if err := cron.Wait(ctx, r.config.Schedule, r.clock()); err != nil {
			log.Println("reconciler: stopped")
			return
		}
		r.runCycle(ctx)
	}
}

// runCycle executes one reconciliation cycle.
func (r *Reconciler) runCycle(ctx context.Context) {
	now := r.clock().UTC()
	cutoff := now.Add(-r.config.Threshold)

	pending, err := r.store.GetPendingOrders(ctx, cutoff, r.config.BatchSize)
	if err != nil {
		// DB error: log and abort cycle. Will retry next run.
		log.Printf("reconciler: failed to fetch pending orders: %v", err)
		return
	}

	if r.metrics != nil {
		r.metrics.PendingOrdersUpdate(len(pending))
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("reconciler: found %d pending orders", len(pending))

	emitted := 0
	failed := 0

	for _, order := range pending {
		if ctx.Err() != nil {
			log.Printf("reconciler: cycle interrupted, processed %d/%d orders", emitted+failed, len(pending))
			return
		}

		event := domain.OrderEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			EmittedAt:  now,
		}

		if err := r.emitter.Emit(ctx, event); err != nil {
			// Buffer full or shutting down: next cycle picks it up again.
			log.Printf("reconciler: failed to re-emit order=%s: %v", order.ID, err)
			failed++
			continue
		}

		log.Printf("reconciler: re-emitted order=%s code=%s (age=%s)",
			order.ID, order.Code, now.Sub(order.CreatedAt).Round(time.Second))
		emitted++
	}

	log.Printf("reconciler: cycle complete, re-emitted=%d, failed=%d", emitted, failed)
}
