package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TatisVivas/zakekeSample/internal/analytics"
	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/store"
)

// mockHandlerStore is an in-memory api.Store for handler tests.
type mockHandlerStore struct {
	mu sync.Mutex

	products map[string]domain.Product
	options  map[string][]domain.ProductOption
	cart     []domain.CartItem
	orders   map[uuid.UUID]domain.Order
	attempts map[uuid.UUID][]domain.RegistrationAttempt

	// err, when set, is returned by every method.
	err error
}

func newMockStore() *mockHandlerStore {
	return &mockHandlerStore{
		products: make(map[string]domain.Product),
		options:  make(map[string][]domain.ProductOption),
		orders:   make(map[uuid.UUID]domain.Order),
		attempts: make(map[uuid.UUID][]domain.RegistrationAttempt),
	}
}

func (s *mockHandlerStore) addProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.Code] = p
}

func (s *mockHandlerStore) ListProducts(ctx context.Context, page, pageSize int, search string) ([]domain.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, 0, s.err
	}
	var all []domain.Product
	needle := strings.ToLower(search)
	for _, p := range s.products {
		if needle == "" || strings.Contains(strings.ToLower(p.Code+" "+p.Name+" "+p.Description), needle) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })

	start := (page - 1) * pageSize
	if start >= len(all) {
		return []domain.Product{}, len(all), nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (s *mockHandlerStore) GetProduct(ctx context.Context, code string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Product{}, s.err
	}
	p, ok := s.products[code]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *mockHandlerStore) UpsertProduct(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.products[p.Code] = p
	return nil
}

func (s *mockHandlerStore) SetProductCustomizable(ctx context.Context, code string, customizable bool) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Product{}, s.err
	}
	p, ok := s.products[code]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	p.Customizable = customizable
	s.products[code] = p
	return p, nil
}

func (s *mockHandlerStore) GetProductOptions(ctx context.Context, code string) ([]domain.ProductOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	opts := s.options[code]
	if opts == nil {
		opts = []domain.ProductOption{}
	}
	return opts, nil
}

func (s *mockHandlerStore) UpsertProductOptions(ctx context.Context, code string, opts []domain.ProductOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.products[code]; !ok {
		return store.ErrNotFound
	}
	s.options[code] = opts
	return nil
}

func (s *mockHandlerStore) ListCartItems(ctx context.Context, ownerID string) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.CartItem
	for _, item := range s.cart {
		if item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *mockHandlerStore) AddCartItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.CartItem{}, s.err
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.cart = append(s.cart, item)
	return item, nil
}

func (s *mockHandlerStore) UpsertCartItemBySKU(ctx context.Context, ownerID, sku string, patch domain.CartItemPatch) (domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.CartItem{}, s.err
	}
	for i, item := range s.cart {
		if item.OwnerID == ownerID && item.SKU == sku {
			patch.Apply(&s.cart[i])
			return s.cart[i], nil
		}
	}
	item := domain.CartItem{ID: uuid.New(), OwnerID: ownerID, SKU: sku, Quantity: 1}
	patch.Apply(&item)
	s.cart = append(s.cart, item)
	return item, nil
}

func (s *mockHandlerStore) UpdateCartItem(ctx context.Context, ownerID string, id uuid.UUID, patch domain.CartItemPatch) (domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.CartItem{}, s.err
	}
	for i, item := range s.cart {
		if item.ID == id && item.OwnerID == ownerID {
			patch.Apply(&s.cart[i])
			return s.cart[i], nil
		}
	}
	return domain.CartItem{}, store.ErrNotFound
}

func (s *mockHandlerStore) RemoveCartItem(ctx context.Context, ownerID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for i, item := range s.cart {
		if item.ID == id && item.OwnerID == ownerID {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *mockHandlerStore) ClearCart(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	kept := s.cart[:0]
	for _, item := range s.cart {
		if item.OwnerID != ownerID {
			kept = append(kept, item)
		}
	}
	s.cart = kept
	return nil
}

func (s *mockHandlerStore) MigrateCart(ctx context.Context, visitorID, customerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for i := range s.cart {
		if s.cart[i].OwnerID == visitorID {
			s.cart[i].OwnerID = customerID
			n++
		}
	}
	return n, nil
}

func (s *mockHandlerStore) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Order{}, s.err
	}
	for _, o := range s.orders {
		if o.Code == order.Code {
			return domain.Order{}, store.ErrConflict
		}
	}
	order.Registration = domain.RegistrationPending
	order.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.orders[order.ID] = order
	return order, nil
}

func (s *mockHandlerStore) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Order{}, s.err
	}
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *mockHandlerStore) ListOrdersByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *mockHandlerStore) ListRegistrationAttempts(ctx context.Context, orderID uuid.UUID) ([]domain.RegistrationAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.attempts[orderID], nil
}

// mockEmitter records emitted order events.
type mockEmitter struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (e *mockEmitter) Emit(ctx context.Context, event domain.OrderEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

// mockAnalytics counts records per kind:sku.
type mockAnalytics struct {
	mu      sync.Mutex
	records map[string]int64
	err     error
}

func newMockAnalytics() *mockAnalytics {
	return &mockAnalytics{records: make(map[string]int64)}
}

func (a *mockAnalytics) Record(ctx context.Context, kind analytics.Kind, sku string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.records[string(kind)+":"+sku]++
	return nil
}

func (a *mockAnalytics) Count(ctx context.Context, kind analytics.Kind, sku string, from, to time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return 0, a.err
	}
	return a.records[string(kind)+":"+sku], nil
}

func (a *mockAnalytics) count(key string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records[key]
}

// mockHealthChecker implements HealthChecker for handler tests.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}
