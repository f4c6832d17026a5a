package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TatisVivas/zakekeSample/internal/analytics"
	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/session"
	"github.com/TatisVivas/zakekeSample/internal/vendor"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000

	// CatalogPageSize is the page size of the vendor-facing catalog listing.
	CatalogPageSize = 20
)

type Store interface {
	ListProducts(ctx context.Context, page, pageSize int, search string) ([]domain.Product, int, error)
	GetProduct(ctx context.Context, code string) (domain.Product, error)
	UpsertProduct(ctx context.Context, p domain.Product) error
	SetProductCustomizable(ctx context.Context, code string, customizable bool) (domain.Product, error)
	GetProductOptions(ctx context.Context, code string) ([]domain.ProductOption, error)
	UpsertProductOptions(ctx context.Context, code string, opts []domain.ProductOption) error

	ListCartItems(ctx context.Context, ownerID string) ([]domain.CartItem, error)
	AddCartItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error)
	UpsertCartItemBySKU(ctx context.Context, ownerID, sku string, patch domain.CartItemPatch) (domain.CartItem, error)
	UpdateCartItem(ctx context.Context, ownerID string, id uuid.UUID, patch domain.CartItemPatch) (domain.CartItem, error)
	RemoveCartItem(ctx context.Context, ownerID string, id uuid.UUID) error
	ClearCart(ctx context.Context, ownerID string) error
	MigrateCart(ctx context.Context, visitorID, customerID string) (int, error)

	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error)
	ListRegistrationAttempts(ctx context.Context, orderID uuid.UUID) ([]domain.RegistrationAttempt, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// VendorClient is the subset of the Zakeke REST client the handlers call.
type VendorClient interface {
	RegisterOrder(ctx context.Context, payload json.RawMessage, token domain.Token) (json.RawMessage, error)
	GetPrintFilesURL(ctx context.Context, designID string, token domain.Token) (string, error)
	ValidateModelCode(ctx context.Context, modelCode string, token domain.Token) (bool, error)
	ListCustomerDesigns(ctx context.Context, customerID string, token domain.Token) (json.RawMessage, error)
}

// DesignPoller answers readiness checks for vendor designs.
type DesignPoller interface {
	Check(ctx context.Context, q domain.DesignQuery, attempt int) (domain.DesignStatus, error)
	Poll(ctx context.Context, q domain.DesignQuery) (domain.DesignStatus, error)
	MaxAttempts() int
	Delay() time.Duration
}

// EventEmitter hands new orders to the background registrar.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.OrderEvent) error
}

// Analytics records and reads storefront counters. Failures never fail a request.
type Analytics interface {
	Record(ctx context.Context, kind analytics.Kind, sku string) error
	Count(ctx context.Context, kind analytics.Kind, sku string, from, to time.Time) (int64, error)
}

type Handler struct {
	store    Store
	sessions *session.Manager
	creds    domain.Credentials

	db        HealthChecker // optional
	tokens    vendor.TokenSource
	client    VendorClient
	poller    DesignPoller
	emitter   EventEmitter // optional, nil = pending orders wait for the reconciler
	analytics Analytics    // optional, nil = disabled

	publicBaseURL string
	currency      string
	now           func() time.Time
}

func NewHandler(store Store, sessions *session.Manager, creds domain.Credentials) *Handler {
	return &Handler{
		store:    store,
		sessions: sessions,
		creds:    creds,
		currency: "COP",
		now:      time.Now,
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithVendor enables the /api/zakeke endpoints.
func (h *Handler) WithVendor(tokens vendor.TokenSource, client VendorClient, poller DesignPoller) *Handler {
	h.tokens = tokens
	h.client = client
	h.poller = poller
	return h
}

func (h *Handler) WithEmitter(e EventEmitter) *Handler {
	h.emitter = e
	return h
}

func (h *Handler) WithAnalytics(a Analytics) *Handler {
	h.analytics = a
	return h
}

// WithPublicBaseURL sets the origin used for absolute catalog thumbnails.
// Empty means derive it from each request.
func (h *Handler) WithPublicBaseURL(base string) *Handler {
	h.publicBaseURL = strings.TrimRight(base, "/")
	return h
}

// WithCurrency sets the currency assigned to products posted without one.
func (h *Handler) WithCurrency(code string) *Handler {
	if code != "" {
		h.currency = strings.ToUpper(code)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimRight(r.URL.Path, "/")
	method := r.Method

	switch {
	case path == "/health" && method == http.MethodGet:
		h.health(w, r)

	case path == "/api/products" && method == http.MethodGet:
		h.listProducts(w, r)
	case path == "/api/products" && method == http.MethodPost:
		h.upsertProduct(w, r)

	case path == "/api/catalog" || strings.HasPrefix(path, "/api/catalog/"),
		strings.HasPrefix(path, "/api/analytics/"):
		session.RequireBasicAuth(h.creds, http.HandlerFunc(h.serveVendorFacing)).ServeHTTP(w, r)

	case path == "/api/cart" && method == http.MethodGet:
		h.listCart(w, r)
	case path == "/api/cart" && method == http.MethodPost:
		h.addToCart(w, r)
	case path == "/api/cart" && method == http.MethodPut:
		h.upsertCartBySKU(w, r)
	case path == "/api/cart/clear" && method == http.MethodPost:
		h.clearCart(w, r)
	case path == "/api/cart/migrate" && method == http.MethodPost:
		h.migrateCart(w, r)
	case strings.HasPrefix(path, "/api/cart/") && method == http.MethodPut:
		h.updateCartItem(w, r)
	case strings.HasPrefix(path, "/api/cart/") && method == http.MethodDelete:
		h.removeCartItem(w, r)

	case path == "/api/orders" && method == http.MethodGet:
		h.listOrders(w, r)
	case path == "/api/orders" && method == http.MethodPost:
		h.createOrder(w, r)
	case strings.HasPrefix(path, "/api/orders/") && method == http.MethodGet:
		h.getOrder(w, r)

	case strings.HasPrefix(path, "/api/zakeke/"):
		h.serveZakeke(w, r)
	case path == "/api/seller-designs" && method == http.MethodGet:
		h.sellerDesigns(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// serveVendorFacing routes the Basic-auth protected endpoints.
func (h *Handler) serveVendorFacing(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r)
	method := r.Method

	switch {
	case len(parts) == 2 && parts[1] == "catalog" && method == http.MethodGet:
		h.listCatalog(w, r)
	case len(parts) == 4 && parts[1] == "catalog" && parts[3] == "options" && method == http.MethodGet:
		h.getCatalogOptions(w, r, parts[2])
	case len(parts) == 4 && parts[1] == "catalog" && parts[3] == "options" && method == http.MethodPut:
		h.putCatalogOptions(w, r, parts[2])
	case len(parts) == 4 && parts[1] == "catalog" && parts[3] == "customizer" && method == http.MethodPost:
		h.setCustomizable(w, r, parts[2], true)
	case len(parts) == 4 && parts[1] == "catalog" && parts[3] == "customizer" && method == http.MethodDelete:
		h.setCustomizable(w, r, parts[2], false)
	case len(parts) == 4 && parts[1] == "catalog" && parts[3] == "configurator" && method == http.MethodGet:
		h.getConfigurator(w, r, parts[2])
	case len(parts) == 3 && parts[1] == "analytics" && method == http.MethodGet:
		h.getAnalytics(w, r, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) serveZakeke(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, http.StatusServiceUnavailable, "vendor integration not configured")
		return
	}

	parts := pathParts(r)
	method := r.Method

	switch {
	case len(parts) == 3 && parts[2] == "token" && method == http.MethodPost:
		h.issueToken(w, r)
	case len(parts) == 4 && parts[2] == "designs" && method == http.MethodGet:
		h.checkDesign(w, r, parts[3])
	case len(parts) == 5 && parts[2] == "designs" && parts[4] == "wait" && method == http.MethodGet:
		h.waitDesign(w, r, parts[3])
	case len(parts) == 4 && parts[2] == "print-files" && method == http.MethodGet:
		h.printFiles(w, r, parts[3])
	case len(parts) == 3 && parts[2] == "register-order" && method == http.MethodPost:
		h.registerOrder(w, r)
	case len(parts) == 3 && parts[2] == "validate-model" && method == http.MethodPost:
		h.validateModel(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	// Check if verbose mode requested via ?verbose=true
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	if h.tokens != nil {
		resp.Components["vendor"] = "configured"
	} else {
		resp.Components["vendor"] = "disabled"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// decodeJSON reads a size-limited JSON body into v and writes the error
// response itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	// Limit request body size to prevent DoS via large payloads
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeVendorError maps a vendor failure onto 401, 404, 502 or 500.
func writeVendorError(w http.ResponseWriter, op string, err error) {
	status := vendor.HTTPStatus(err)
	log.Printf("api: %s error: status=%d err=%v", op, status, err)
	writeJSON(w, status, ErrorResponse{Error: op + " failed", Details: err.Error()})
}

func pathParts(r *http.Request) []string {
	return strings.Split(strings.Trim(r.URL.Path, "/"), "/")
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}

// positiveQueryInt reads an optional positive integer query parameter.
func positiveQueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return n, nil
}
