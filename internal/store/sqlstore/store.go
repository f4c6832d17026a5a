// Package sqlstore implements the storefront and registrar stores on
// database/sql, against PostgreSQL (lib/pq) or SQLite (modernc.org/sqlite).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/TatisVivas/zakekeSample/internal/api"
	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/reconciler"
	"github.com/TatisVivas/zakekeSample/internal/registrar"
	"github.com/TatisVivas/zakekeSample/internal/store"
)

// Dialect selects the DDL flavour. Queries are shared.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Open opens a database for the given driver name ("postgres" or "sqlite").
// SQLite is limited to one connection so in-memory databases are shared
// by every query and writes are serialized.
func Open(driver, dsn string) (*sql.DB, Dialect, error) {
	switch Dialect(driver) {
	case DialectPostgres:
		db, err := sql.Open("postgres", dsn)
		return db, DialectPostgres, err
	case DialectSQLite:
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, DialectSQLite, err
		}
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, DialectSQLite, fmt.Errorf("enable foreign keys: %w", err)
		}
		return db, DialectSQLite, nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Store implements api.Store, registrar.Store and reconciler.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Products

// ListProducts returns one page of products and the total number matching
// search (case-insensitive over code, name and description).
func (s *Store) ListProducts(ctx context.Context, page, pageSize int, search string) ([]domain.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	pattern := ""
	if q := strings.TrimSpace(search); q != "" {
		pattern = "%" + strings.ToLower(q) + "%"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, queryCountProducts, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, queryListProducts, pattern, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *Store) GetProduct(ctx context.Context, code string) (domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, queryGetProduct, code))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, store.ErrNotFound
	}
	return p, err
}

func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	_, err := s.db.ExecContext(ctx, queryUpsertProduct,
		p.Code,
		p.Name,
		p.Description,
		p.ImageURL,
		p.BasePrice,
		p.Currency,
		p.Customizable,
		p.ModelCode,
		s.now(),
	)
	return err
}

// SetProductCustomizable returns store.ErrNotFound for an unknown code.
func (s *Store) SetProductCustomizable(ctx context.Context, code string, customizable bool) (domain.Product, error) {
	result, err := s.db.ExecContext(ctx, querySetProductCustomizable, customizable, s.now(), code)
	if err != nil {
		return domain.Product{}, err
	}
	if err := requireRow(result); err != nil {
		return domain.Product{}, err
	}
	return s.GetProduct(ctx, code)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.Code,
		&p.Name,
		&p.Description,
		&p.ImageURL,
		&p.BasePrice,
		&p.Currency,
		&p.Customizable,
		&p.ModelCode,
	)
	return p, err
}

// Product options

// GetProductOptions returns an empty slice when the product has no options.
func (s *Store) GetProductOptions(ctx context.Context, code string) ([]domain.ProductOption, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, queryGetProductOptions, code).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.ProductOption{}, nil
	}
	if err != nil {
		return nil, err
	}

	var opts []domain.ProductOption
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("decode options for %s: %w", code, err)
	}
	if opts == nil {
		opts = []domain.ProductOption{}
	}
	return opts, nil
}

// UpsertProductOptions replaces the options of an existing product.
func (s *Store) UpsertProductOptions(ctx context.Context, code string, opts []domain.ProductOption) error {
	if opts == nil {
		opts = []domain.ProductOption{}
	}
	for i := range opts {
		if opts[i].Values == nil {
			opts[i].Values = []domain.ProductOptionValue{}
		}
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, queryUpsertProductOptions, code, string(raw))
	if isForeignKeyError(err) {
		return store.ErrNotFound
	}
	return err
}

// Cart

func (s *Store) ListCartItems(ctx context.Context, ownerID string) ([]domain.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, queryListCartItems, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AddCartItem always inserts a new line, even if the SKU is already in the cart.
func (s *Store) AddCartItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, queryInsertCartItem,
		item.ID,
		item.OwnerID,
		item.SKU,
		item.Quantity,
		item.DesignID,
		item.CreatedAt,
	)
	if err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

// UpsertCartItemBySKU updates the owner's first line for sku, or creates a
// line with quantity 1 (unless the patch sets one) when there is none.
func (s *Store) UpsertCartItemBySKU(ctx context.Context, ownerID, sku string, patch domain.CartItemPatch) (domain.CartItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CartItem{}, err
	}
	defer tx.Rollback()

	item, err := scanCartItem(tx.QueryRowContext(ctx, queryFindCartItemBySKU, ownerID, sku))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		item = domain.CartItem{ID: uuid.New(), OwnerID: ownerID, SKU: sku, Quantity: 1, CreatedAt: s.now()}
		patch.Apply(&item)
		_, err = tx.ExecContext(ctx, queryInsertCartItem,
			item.ID, item.OwnerID, item.SKU, item.Quantity, item.DesignID, item.CreatedAt)
	case err == nil:
		patch.Apply(&item)
		_, err = tx.ExecContext(ctx, queryUpdateCartItem, item.Quantity, item.DesignID, item.ID, ownerID)
	}
	if err != nil {
		return domain.CartItem{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

// UpdateCartItem returns store.ErrNotFound if the line does not belong to ownerID.
func (s *Store) UpdateCartItem(ctx context.Context, ownerID string, id uuid.UUID, patch domain.CartItemPatch) (domain.CartItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CartItem{}, err
	}
	defer tx.Rollback()

	item, err := scanCartItem(tx.QueryRowContext(ctx, queryGetCartItem, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CartItem{}, store.ErrNotFound
	}
	if err != nil {
		return domain.CartItem{}, err
	}

	patch.Apply(&item)
	if _, err := tx.ExecContext(ctx, queryUpdateCartItem, item.Quantity, item.DesignID, id, ownerID); err != nil {
		return domain.CartItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

func (s *Store) RemoveCartItem(ctx context.Context, ownerID string, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, queryDeleteCartItem, id, ownerID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) ClearCart(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, queryClearCart, ownerID)
	return err
}

// MigrateCart moves every line owned by visitorID to customerID and
// returns how many lines moved.
func (s *Store) MigrateCart(ctx context.Context, visitorID, customerID string) (int, error) {
	if visitorID == "" || visitorID == customerID {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, queryMigrateCart, customerID, visitorID)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func scanCartItem(row rowScanner) (domain.CartItem, error) {
	var item domain.CartItem
	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.SKU,
		&item.Quantity,
		&item.DesignID,
		&item.CreatedAt,
	)
	return item, err
}

// Orders

// CreateOrder inserts the order as pending registration.
// Returns store.ErrConflict if the order code is already taken.
func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	now := s.now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = now
	}
	if len(order.Items) == 0 {
		order.Items = json.RawMessage("[]")
	}
	order.Registration = domain.RegistrationPending
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, queryInsertOrder,
		order.ID,
		order.Code,
		order.CustomerID,
		string(order.Items),
		order.Total,
		string(order.Registration),
		order.OrderDate.UTC(),
		now,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return domain.Order{}, store.ErrConflict
		}
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, queryGetOrder, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, store.ErrNotFound
	}
	return order, err
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	return s.queryOrders(ctx, queryListOrdersByCustomer, customerID, limit, offset)
}

// GetPendingOrders returns orders still pending registration that were
// created before olderThan, plus orders whose registrar claim has lapsed,
// oldest first, at most maxResults.
func (s *Store) GetPendingOrders(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.Order, error) {
	return s.queryOrders(ctx, queryGetPendingOrders, olderThan.UTC(), s.now(), maxResults)
}

// ClaimOrder moves a pending order, or one whose claim expired, to
// registering until leaseUntil. It reports false when the order is held by
// a live claim or already terminal.
func (s *Store) ClaimOrder(ctx context.Context, orderID uuid.UUID, leaseUntil time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryClaimOrder, leaseUntil.UTC(), s.now(), orderID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseOrder hands a claimed order back to pending.
func (s *Store) ReleaseOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, queryReleaseOrder, s.now(), orderID)
	return err
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var items []byte
	var status string
	err := row.Scan(
		&order.ID,
		&order.Code,
		&order.CustomerID,
		&items,
		&order.Total,
		&status,
		&order.VendorOrderID,
		&order.OrderDate,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = json.RawMessage(items)
	order.Registration = domain.RegistrationStatus(status)
	return order, nil
}

// InsertRegistrationAttempt inserts a registration attempt record.
func (s *Store) InsertRegistrationAttempt(ctx context.Context, attempt domain.RegistrationAttempt) error {
	_, err := s.db.ExecContext(ctx, queryInsertRegistrationAttempt,
		attempt.ID,
		attempt.OrderID,
		attempt.Attempt,
		attempt.StatusCode,
		attempt.Error,
		attempt.StartedAt.UTC(),
		attempt.FinishedAt.UTC(),
	)
	return err
}

func (s *Store) ListRegistrationAttempts(ctx context.Context, orderID uuid.UUID) ([]domain.RegistrationAttempt, error) {
	rows, err := s.db.QueryContext(ctx, queryListRegistrationAttempts, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RegistrationAttempt
	for rows.Next() {
		var a domain.RegistrationAttempt
		if err := rows.Scan(&a.ID, &a.OrderID, &a.Attempt, &a.StatusCode, &a.Error, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpdateOrderRegistration moves an order to a terminal state and drops its claim.
// Returns registrar.ErrStatusTransitionDenied if the order is already terminal,
// and store.ErrNotFound if it does not exist.
func (s *Store) UpdateOrderRegistration(ctx context.Context, orderID uuid.UUID, status domain.RegistrationStatus, vendorOrderID string) error {
	// The guard lives in the WHERE clause so concurrent registrars
	// cannot both finalize the same order.
	result, err := s.db.ExecContext(ctx, queryUpdateOrderRegistration, string(status), vendorOrderID, s.now(), orderID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, queryGetOrderRegistration, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return registrar.ErrStatusTransitionDenied
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// isDuplicateKeyError reports a unique violation from either driver.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// Compile-time interface assertions
var (
	_ api.Store        = (*Store)(nil)
	_ registrar.Store  = (*Store)(nil)
	_ reconciler.Store = (*Store)(nil)
)
