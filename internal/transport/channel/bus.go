// Package channel is the in-process event bus between checkout and the
// order registrar.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/TatisVivas/zakekeSample/internal/domain"
)

// DefaultEmitTimeout bounds how long Emit waits for buffer space.
const DefaultEmitTimeout = 5 * time.Second

// ErrBufferFull is returned when the buffer stayed full for the whole emit timeout.
var ErrBufferFull = errors.New("event bus buffer full")

// MetricsSink receives buffer gauges. Implementations must not block.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

type Option func(*EventBus)

func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) {
		if d > 0 {
			b.emitTimeout = d
		}
	}
}

func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = sink
	}
}

type EventBus struct {
	ch          chan domain.OrderEvent
	emitTimeout time.Duration
	metrics     MetricsSink // optional, nil = disabled
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch:          make(chan domain.OrderEvent, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(cap(b.ch))
	}
	return b
}

// Emit enqueues an event. It never blocks past the emit timeout, so a
// stalled registrar cannot hold up checkout.
func (b *EventBus) Emit(ctx context.Context, event domain.OrderEvent) error {
	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- event:
		b.reportSize()
		return nil
	case <-ctx.Done():
		b.emitFailed()
		return ctx.Err()
	case <-timer.C:
		b.emitFailed()
		return ErrBufferFull
	}
}

func (b *EventBus) Channel() <-chan domain.OrderEvent {
	return b.ch
}

func (b *EventBus) reportSize() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	b.metrics.BufferSizeUpdate(size)
	if c := cap(b.ch); c > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(c))
	}
}

func (b *EventBus) emitFailed() {
	if b.metrics != nil {
		b.metrics.EmitError()
	}
}
