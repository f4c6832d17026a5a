// Package testutil holds fixtures shared by the storefront and registrar tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/TatisVivas/zakekeSample/internal/domain"
)

// FakeClock is a settable time source. Its Now method fits every
// `now func() time.Time` hook in the codebase.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps to t, backwards if needed. Used to expire leases and tokens.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// TestContext is cancelled after five seconds or when the test ends,
// whichever comes first.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

var orderSeq atomic.Int64

// PendingOrder builds an order awaiting registration, created at createdAt,
// with a unique ML-T code. Items are encoded the way checkout stores them.
func PendingOrder(customerID string, createdAt time.Time, items ...domain.OrderItem) domain.Order {
	if items == nil {
		items = []domain.OrderItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		panic(fmt.Sprintf("testutil: encode items: %v", err))
	}
	var total int64
	for _, it := range items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return domain.Order{
		ID:           uuid.New(),
		Code:         fmt.Sprintf("ML-T%04d", orderSeq.Add(1)),
		CustomerID:   customerID,
		Items:        raw,
		Total:        total,
		Registration: domain.RegistrationPending,
		OrderDate:    createdAt,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}
