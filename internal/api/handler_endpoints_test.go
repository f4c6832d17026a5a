package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/session"
)

var testCreds = domain.Credentials{ClientID: "catalog-user", ClientSecret: "catalog-pass"}

const testVisitor = "33333333-3333-4333-8333-333333333333"

func newTestHandler(store *mockHandlerStore) *Handler {
	return NewHandler(store, session.NewManager(false), testCreds)
}

func seedProducts(store *mockHandlerStore) {
	store.addProduct(domain.Product{Code: "1001", Name: "Tote Bag Blanca", ImageURL: "/totebag-white.png", BasePrice: 45000, Currency: "COP", Customizable: true, ModelCode: "1001"})
	store.addProduct(domain.Product{Code: "1002", Name: "Tote Bag Negra", ImageURL: "https://cdn.example.com/black.png", BasePrice: 48000, Currency: "COP"})
	store.addProduct(domain.Product{Code: "1003", Name: "Camiseta Unisex Blanca", BasePrice: 35000, Currency: "COP"})
}

// request builds a request carrying the test visitor cookie and, when
// customer is set, the signed-in customer header.
func request(method, target, body, customer string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: session.VisitorCookie, Value: testVisitor})
	if customer != "" {
		req.Header.Set(session.CustomerHeader, customer)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// --- Health ---

func TestHandler_Health_Simple(t *testing.T) {
	w := serve(newTestHandler(newMockStore()), request(http.MethodGet, "/health", "", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.Components != nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandler_Health_Verbose_Unhealthy(t *testing.T) {
	h := newTestHandler(newMockStore()).WithHealthChecker(&mockHealthChecker{err: errors.New("connection refused")})
	w := serve(h, request(http.MethodGet, "/health?verbose=true", "", ""))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "degraded" || !strings.Contains(resp.Components["database"], "unhealthy") {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Components["vendor"] != "disabled" {
		t.Errorf("vendor component = %q, want disabled", resp.Components["vendor"])
	}
}

func TestHandler_Health_Verbose_Healthy(t *testing.T) {
	h := newTestHandler(newMockStore()).WithHealthChecker(&mockHealthChecker{})
	w := serve(h, request(http.MethodGet, "/health?verbose=true", "", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandler_NotFound(t *testing.T) {
	w := serve(newTestHandler(newMockStore()), request(http.MethodGet, "/nope", "", ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- Products ---

func TestHandler_ListProducts(t *testing.T) {
	store := newMockStore()
	seedProducts(store)

	w := serve(newTestHandler(store), request(http.MethodGet, "/api/products", "", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var products []domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(products) != 3 || products[0].Code != "1001" {
		t.Errorf("unexpected products: %+v", products)
	}
}

func TestHandler_UpsertProduct_MergesExisting(t *testing.T) {
	store := newMockStore()
	seedProducts(store)

	w := serve(newTestHandler(store), request(http.MethodPost, "/api/products", `{"code":"1001","basePrice":50000}`, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	p := store.products["1001"]
	if p.BasePrice != 50000 {
		t.Errorf("BasePrice = %d, want 50000", p.BasePrice)
	}
	if p.Name != "Tote Bag Blanca" || !p.Customizable {
		t.Errorf("untouched fields changed: %+v", p)
	}
}

func TestHandler_UpsertProduct_NewRequiresName(t *testing.T) {
	store := newMockStore()
	h := newTestHandler(store).WithCurrency("usd")

	w := serve(h, request(http.MethodPost, "/api/products", `{"code":"2001"}`, ""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = serve(h, request(http.MethodPost, "/api/products", `{"code":"2001","name":"Gorra"}`, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := store.products["2001"].Currency; got != "USD" {
		t.Errorf("Currency = %q, want USD default", got)
	}
}

func TestHandler_UpsertProduct_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"non-numeric code", `{"code":"abc","name":"x"}`, http.StatusBadRequest},
		{"negative price", `{"code":"1","name":"x","basePrice":-1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestHandler(newMockStore()), request(http.MethodPost, "/api/products", tt.body, ""))
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestHandler_UpsertProduct_BodyTooLarge(t *testing.T) {
	body := `{"code":"1","name":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	w := serve(newTestHandler(newMockStore()), request(http.MethodPost, "/api/products", body, ""))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

// --- Vendor catalog ---

func catalogRequest(method, target, body string) *http.Request {
	req := request(method, target, body, "")
	req.SetBasicAuth(testCreds.ClientID, testCreds.ClientSecret)
	return req
}

func TestHandler_Catalog_RequiresBasicAuth(t *testing.T) {
	w := serve(newTestHandler(newMockStore()), request(http.MethodGet, "/api/catalog", "", ""))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate")
	}
}

func TestHandler_Catalog_ListResolvesThumbnails(t *testing.T) {
	store := newMockStore()
	seedProducts(store)

	w := serve(newTestHandler(store), catalogRequest(http.MethodGet, "http://shop.local/api/catalog", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var items []CatalogItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	want := map[string]string{
		"1001": "http://shop.local/totebag-white.png",
		"1002": "https://cdn.example.com/black.png",
		"1003": "http://shop.local/totebag-sample.png",
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	for _, item := range items {
		if item.Thumbnail != want[item.Code] {
			t.Errorf("thumbnail[%s] = %q, want %q", item.Code, item.Thumbnail, want[item.Code])
		}
	}
}

func TestHandler_Catalog_PublicBaseURLAndSearch(t *testing.T) {
	store := newMockStore()
	seedProducts(store)
	h := newTestHandler(store).WithPublicBaseURL("https://merchlab.example/")

	w := serve(h, catalogRequest(http.MethodGet, "/api/catalog?search=camiseta", ""))
	var items []CatalogItem
	json.Unmarshal(w.Body.Bytes(), &items)

	if len(items) != 1 || items[0].Code != "1003" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[0].Thumbnail != "https://merchlab.example/totebag-sample.png" {
		t.Errorf("thumbnail = %q", items[0].Thumbnail)
	}
}

func TestHandler_Catalog_InvalidPage(t *testing.T) {
	w := serve(newTestHandler(newMockStore()), catalogRequest(http.MethodGet, "/api/catalog?page=0", ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_Catalog_Options(t *testing.T) {
	store := newMockStore()
	seedProducts(store)
	h := newTestHandler(store)

	body := `[{"code":"1","name":"Color","values":[{"code":"11","name":"Blanco"}]}]`
	w := serve(h, catalogRequest(http.MethodPut, "/api/catalog/1001/options", body))
	if w.Code != http.StatusOK {
		t.Fatalf("PUT expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(h, catalogRequest(http.MethodGet, "/api/catalog/1001/options", ""))
	var opts []domain.ProductOption
	json.Unmarshal(w.Body.Bytes(), &opts)
	if len(opts) != 1 || opts[0].Values[0].Name != "Blanco" {
		t.Errorf("unexpected options: %+v", opts)
	}

	w = serve(h, catalogRequest(http.MethodGet, "/api/catalog/9999/options", ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown product: expected 404, got %d", w.Code)
	}

	w = serve(h, catalogRequest(http.MethodPut, "/api/catalog/9999/options", body))
	if w.Code != http.StatusNotFound {
		t.Errorf("PUT unknown product: expected 404, got %d", w.Code)
	}
}

func TestHandler_Catalog_Customizer(t *testing.T) {
	store := newMockStore()
	seedProducts(store)
	h := newTestHandler(store)

	w := serve(h, catalogRequest(http.MethodPost, "/api/catalog/1002/customizer", ""))
	if w.Code != http.StatusOK || !store.products["1002"].Customizable {
		t.Fatalf("POST: code=%d customizable=%t", w.Code, store.products["1002"].Customizable)
	}

	w = serve(h, catalogRequest(http.MethodDelete, "/api/catalog/1002/customizer", ""))
	if w.Code != http.StatusOK || store.products["1002"].Customizable {
		t.Fatalf("DELETE: code=%d customizable=%t", w.Code, store.products["1002"].Customizable)
	}

	w = serve(h, catalogRequest(http.MethodPost, "/api/catalog/9999/customizer", ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown product: expected 404, got %d", w.Code)
	}
}

func TestHandler_Catalog_Configurator(t *testing.T) {
	store := newMockStore()
	seedProducts(store)

	w := serve(newTestHandler(store), catalogRequest(http.MethodGet, "/api/catalog/1001/configurator", ""))
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("got %d %q, want 200 []", w.Code, w.Body.String())
	}
}

// --- Cart ---

func TestHandler_Cart_AddListRemove(t *testing.T) {
	store := newMockStore()
	stats := newMockAnalytics()
	h := newTestHandler(store).WithAnalytics(stats)

	w := serve(h, request(http.MethodPost, "/api/cart", `{"sku":"1001","quantity":2,"designId":"d-1"}`, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var added CartItemResponse
	json.Unmarshal(w.Body.Bytes(), &added)
	if added.Quantity != 2 || added.DesignID != "d-1" {
		t.Errorf("added = %+v", added)
	}

	serve(h, request(http.MethodPost, "/api/cart", `{"sku":"1003"}`, ""))

	w = serve(h, request(http.MethodGet, "/api/cart", "", ""))
	var items []CartItemResponse
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 2 {
		t.Fatalf("cart = %d items, want 2", len(items))
	}
	if items[1].Quantity != 1 {
		t.Errorf("default quantity = %d, want 1", items[1].Quantity)
	}

	if stats.count("cart_add_customized:1001") != 1 || stats.count("cart_add:1003") != 1 {
		t.Errorf("analytics records = %v", stats.records)
	}

	w = serve(h, request(http.MethodDelete, "/api/cart/"+added.ID, "", ""))
	if w.Code != http.StatusNoContent {
		t.Fatalf("remove: expected 204, got %d", w.Code)
	}
	w = serve(h, request(http.MethodDelete, "/api/cart/"+added.ID, "", ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("second remove: expected 404, got %d", w.Code)
	}
}

func TestHandler_Cart_AnalyticsFailureDoesNotFailRequest(t *testing.T) {
	stats := newMockAnalytics()
	stats.err = errors.New("redis down")
	h := newTestHandler(newMockStore()).WithAnalytics(stats)

	w := serve(h, request(http.MethodPost, "/api/cart", `{"sku":"1001"}`, ""))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 despite analytics failure, got %d", w.Code)
	}
}

func TestHandler_Cart_NewVisitorGetsCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := serve(newTestHandler(newMockStore()), req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	found := false
	for _, c := range w.Result().Cookies() {
		if c.Name == session.VisitorCookie {
			found = true
		}
	}
	if !found {
		t.Error("expected visitor cookie to be issued")
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty cart body = %q, want []", w.Body.String())
	}
}

func TestHandler_Cart_UpsertBySKUAndUpdate(t *testing.T) {
	store := newMockStore()
	h := newTestHandler(store)

	w := serve(h, request(http.MethodPut, "/api/cart", `{"sku":"1001","designId":"d-9"}`, ""))
	var item CartItemResponse
	json.Unmarshal(w.Body.Bytes(), &item)
	if w.Code != http.StatusOK || item.Quantity != 1 || item.DesignID != "d-9" {
		t.Fatalf("upsert: %d %+v", w.Code, item)
	}

	w = serve(h, request(http.MethodPut, "/api/cart", `{"sku":"1001","quantity":4}`, ""))
	json.Unmarshal(w.Body.Bytes(), &item)
	if item.Quantity != 4 || item.DesignID != "d-9" {
		t.Errorf("second upsert: %+v", item)
	}
	if len(store.cart) != 1 {
		t.Errorf("cart lines = %d, want 1", len(store.cart))
	}

	w = serve(h, request(http.MethodPut, "/api/cart/"+item.ID, `{"quantity":7}`, ""))
	json.Unmarshal(w.Body.Bytes(), &item)
	if w.Code != http.StatusOK || item.Quantity != 7 {
		t.Errorf("update: %d %+v", w.Code, item)
	}

	w = serve(h, request(http.MethodPut, "/api/cart/"+uuid.NewString(), `{"quantity":7}`, ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing: expected 404, got %d", w.Code)
	}
	w = serve(h, request(http.MethodPut, "/api/cart/not-a-uuid", `{"quantity":7}`, ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("update bad id: expected 400, got %d", w.Code)
	}
}

func TestHandler_Cart_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing sku", `{"quantity":1}`},
		{"zero quantity", `{"sku":"1001","quantity":0}`},
		{"huge quantity", `{"sku":"1001","quantity":100000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestHandler(newMockStore()), request(http.MethodPost, "/api/cart", tt.body, ""))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandler_Cart_ClearAndMigrate(t *testing.T) {
	store := newMockStore()
	h := newTestHandler(store)

	serve(h, request(http.MethodPost, "/api/cart", `{"sku":"1001"}`, ""))
	serve(h, request(http.MethodPost, "/api/cart", `{"sku":"1002"}`, ""))

	w := serve(h, request(http.MethodPost, "/api/cart/migrate", "", ""))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("migrate without customer: expected 401, got %d", w.Code)
	}

	w = serve(h, request(http.MethodPost, "/api/cart/migrate", "", "cust-1"))
	var migrated MigrateCartResponse
	json.Unmarshal(w.Body.Bytes(), &migrated)
	if w.Code != http.StatusOK || migrated.Migrated != 2 {
		t.Fatalf("migrate: %d %+v", w.Code, migrated)
	}

	// Signed in, the cart owner is now the customer.
	w = serve(h, request(http.MethodGet, "/api/cart", "", "cust-1"))
	var items []CartItemResponse
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 2 {
		t.Fatalf("customer cart = %d, want 2", len(items))
	}

	w = serve(h, request(http.MethodPost, "/api/cart/clear", "", "cust-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", w.Code)
	}
	if len(store.cart) != 0 {
		t.Errorf("cart lines after clear = %d", len(store.cart))
	}
}

func TestHandler_Cart_StoreError(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("db down")

	w := serve(newTestHandler(store), request(http.MethodGet, "/api/cart", "", ""))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// --- Orders ---

const orderBody = `{"code":"ML-1","items":[{"sku":"1001","quantity":1,"designId":"d-1","unitPrice":45000}],"total":45000,"orderDate":"2026-03-01T12:00:00Z"}`

func TestHandler_CreateOrder_EmitsEvent(t *testing.T) {
	store := newMockStore()
	emitter := &mockEmitter{}
	h := newTestHandler(store).WithEmitter(emitter)

	w := serve(h, request(http.MethodPost, "/api/orders", orderBody, "cust-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp OrderResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "ML-1" || resp.Registration != "pending" || resp.CustomerID != "cust-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.OrderDate != "2026-03-01T12:00:00Z" {
		t.Errorf("OrderDate = %q", resp.OrderDate)
	}

	if len(emitter.events) != 1 || emitter.events[0].OrderID.String() != resp.ID {
		t.Fatalf("events = %+v", emitter.events)
	}
	if emitter.events[0].CustomerID != "cust-1" {
		t.Errorf("event customer = %q", emitter.events[0].CustomerID)
	}
}

func TestHandler_CreateOrder_EmitFailureStillCreated(t *testing.T) {
	emitter := &mockEmitter{err: errors.New("event bus buffer full")}
	h := newTestHandler(newMockStore()).WithEmitter(emitter)

	w := serve(h, request(http.MethodPost, "/api/orders", orderBody, "cust-1"))
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}
}

func TestHandler_CreateOrder_Errors(t *testing.T) {
	store := newMockStore()
	h := newTestHandler(store)

	if w := serve(h, request(http.MethodPost, "/api/orders", orderBody, "")); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", w.Code)
	}
	if w := serve(h, request(http.MethodPost, "/api/orders", `{"items":[]}`, "cust-1")); w.Code != http.StatusBadRequest {
		t.Errorf("no items: expected 400, got %d", w.Code)
	}
	if w := serve(h, request(http.MethodPost, "/api/orders", orderBody, "cust-1")); w.Code != http.StatusCreated {
		t.Fatalf("first: expected 201, got %d", w.Code)
	}
	if w := serve(h, request(http.MethodPost, "/api/orders", orderBody, "cust-1")); w.Code != http.StatusConflict {
		t.Errorf("duplicate code: expected 409, got %d", w.Code)
	}
}

func TestHandler_CreateOrder_GeneratesCode(t *testing.T) {
	h := newTestHandler(newMockStore())

	w := serve(h, request(http.MethodPost, "/api/orders", `{"items":[{"sku":"1003","quantity":1}],"total":35000}`, "cust-1"))
	var resp OrderResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusCreated || !strings.HasPrefix(resp.Code, "ML-") {
		t.Errorf("got %d code=%q", w.Code, resp.Code)
	}
}

func TestHandler_ListAndGetOrders(t *testing.T) {
	store := newMockStore()
	h := newTestHandler(store)

	w := serve(h, request(http.MethodPost, "/api/orders", orderBody, "cust-1"))
	var created OrderResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	orderID := uuid.MustParse(created.ID)
	store.attempts[orderID] = []domain.RegistrationAttempt{{Attempt: 1, StatusCode: 503, Error: "upstream"}}

	w = serve(h, request(http.MethodGet, "/api/orders", "", "cust-1"))
	var list ListOrdersResponse
	json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || len(list.Orders) != 1 {
		t.Fatalf("list: %d %+v", w.Code, list)
	}

	w = serve(h, request(http.MethodGet, "/api/orders", "", "cust-2"))
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Orders) != 0 {
		t.Errorf("other customer sees %d orders", len(list.Orders))
	}

	w = serve(h, request(http.MethodGet, "/api/orders/"+created.ID, "", "cust-1"))
	var got OrderResponse
	json.Unmarshal(w.Body.Bytes(), &got)
	if w.Code != http.StatusOK || len(got.Attempts) != 1 || got.Attempts[0].StatusCode != 503 {
		t.Errorf("get: %d %+v", w.Code, got)
	}

	w = serve(h, request(http.MethodGet, "/api/orders/"+created.ID, "", "cust-2"))
	if w.Code != http.StatusNotFound {
		t.Errorf("other customer's order: expected 404, got %d", w.Code)
	}

	w = serve(h, request(http.MethodGet, "/api/orders", "", ""))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list: expected 401, got %d", w.Code)
	}
}

// --- Analytics ---

func TestHandler_Analytics(t *testing.T) {
	stats := newMockAnalytics()
	stats.records["design_ready:1001"] = 5
	h := newTestHandler(newMockStore()).WithAnalytics(stats)

	w := serve(h, catalogRequest(http.MethodGet, "/api/analytics/1001?kind=design_ready&hours=48", ""))
	var resp AnalyticsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.Count != 5 || resp.Hours != 48 {
		t.Errorf("got %d %+v", w.Code, resp)
	}

	if w := serve(h, catalogRequest(http.MethodGet, "/api/analytics/1001?kind=bogus", "")); w.Code != http.StatusBadRequest {
		t.Errorf("bad kind: expected 400, got %d", w.Code)
	}
	if w := serve(h, catalogRequest(http.MethodGet, "/api/analytics/1001?hours=0", "")); w.Code != http.StatusBadRequest {
		t.Errorf("bad hours: expected 400, got %d", w.Code)
	}
	if w := serve(newTestHandler(newMockStore()), catalogRequest(http.MethodGet, "/api/analytics/1001", "")); w.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled: expected 503, got %d", w.Code)
	}
	if w := serve(h, request(http.MethodGet, "/api/analytics/1001", "", "")); w.Code != http.StatusUnauthorized {
		t.Errorf("no auth: expected 401, got %d", w.Code)
	}
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		image string
		want  string
	}{
		{"", "https://o.example/totebag-sample.png"},
		{"/a.png", "https://o.example/a.png"},
		{"img/a.png", "https://o.example/img/a.png"},
		{"https://cdn/a.png", "https://cdn/a.png"},
	}
	for _, tt := range tests {
		if got := absoluteURL("https://o.example", tt.image); got != tt.want {
			t.Errorf("absoluteURL(%q) = %q, want %q", tt.image, got, tt.want)
		}
	}
}
