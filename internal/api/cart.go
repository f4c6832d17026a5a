package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TatisVivas/zakekeSample/internal/analytics"
	"github.com/TatisVivas/zakekeSample/internal/domain"
	"github.com/TatisVivas/zakekeSample/internal/store"
)

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)

	items, err := h.store.ListCartItems(r.Context(), id.Owner())
	if err != nil {
		log.Printf("api: list cart error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list cart")
		return
	}

	resp := make([]CartItemResponse, len(items))
	for i, item := range items {
		resp[i] = cartItemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)

	var req CartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateCartItemRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item := domain.CartItem{OwnerID: id.Owner(), SKU: strings.TrimSpace(req.SKU), Quantity: 1}
	domain.CartItemPatch{Quantity: req.Quantity, DesignID: req.DesignID}.Apply(&item)

	created, err := h.store.AddCartItem(r.Context(), item)
	if err != nil {
		log.Printf("api: add cart item error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	if created.DesignID != "" {
		h.track(r, analytics.KindCartAddCustomized, created.SKU)
	} else {
		h.track(r, analytics.KindCartAdd, created.SKU)
	}
	writeJSON(w, http.StatusOK, cartItemResponse(created))
}

func (h *Handler) upsertCartBySKU(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)

	var req CartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateCartItemRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.store.UpsertCartItemBySKU(r.Context(), id.Owner(), strings.TrimSpace(req.SKU),
		domain.CartItemPatch{Quantity: req.Quantity, DesignID: req.DesignID})
	if err != nil {
		log.Printf("api: upsert cart item error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, cartItemResponse(item))
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)

	itemID, ok := cartItemID(w, r)
	if !ok {
		return
	}

	var req CartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateQuantity(req.Quantity); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.store.UpdateCartItem(r.Context(), id.Owner(), itemID,
		domain.CartItemPatch{Quantity: req.Quantity, DesignID: req.DesignID})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "cart item not found")
		return
	}
	if err != nil {
		log.Printf("api: update cart item error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, cartItemResponse(item))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)

	itemID, ok := cartItemID(w, r)
	if !ok {
		return
	}

	err := h.store.RemoveCartItem(r.Context(), id.Owner(), itemID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "cart item not found")
		return
	}
	if err != nil {
		log.Printf("api: remove cart item error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to remove item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// cartItemID extracts the id from /api/cart/{id}.
func cartItemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	parts := pathParts(r)
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "not found")
		return uuid.Nil, false
	}
	itemID, err := uuid.Parse(parts[2])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cart item id")
		return uuid.Nil, false
	}
	return itemID, true
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)

	if err := h.store.ClearCart(r.Context(), id.Owner()); err != nil {
		log.Printf("api: clear cart error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) migrateCart(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)
	if id.CustomerID == "" {
		writeError(w, http.StatusUnauthorized, "no authenticated customer")
		return
	}

	n, err := h.store.MigrateCart(r.Context(), id.VisitorID, id.CustomerID)
	if err != nil {
		log.Printf("api: migrate cart error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to migrate cart")
		return
	}
	if n > 0 {
		log.Printf("api: migrated %d cart items to customer", n)
	}
	writeJSON(w, http.StatusOK, MigrateCartResponse{Success: true, Migrated: n})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)
	if id.CustomerID == "" {
		writeError(w, http.StatusUnauthorized, "no authenticated customer")
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.store.ListOrdersByCustomer(r.Context(), id.CustomerID, limit, offset)
	if err != nil {
		log.Printf("api: list orders error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	resp := ListOrdersResponse{Orders: make([]OrderResponse, len(orders))}
	for i, o := range orders {
		resp.Orders[i] = orderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)
	if id.CustomerID == "" {
		writeError(w, http.StatusUnauthorized, "no authenticated customer")
		return
	}

	var req CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validateCreateOrder(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now().UTC()
	orderDate := now
	if req.OrderDate != "" {
		orderDate, _ = time.Parse(time.RFC3339, req.OrderDate)
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = fmt.Sprintf("ML-%d", now.UnixMilli())
	}

	items, err := json.Marshal(req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid items")
		return
	}

	order, err := h.store.CreateOrder(r.Context(), domain.Order{
		ID:         uuid.New(),
		Code:       code,
		CustomerID: id.CustomerID,
		Items:      items,
		Total:      req.Total,
		OrderDate:  orderDate,
	})
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "order code already exists")
		return
	}
	if err != nil {
		log.Printf("api: create order error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save order")
		return
	}

	log.Printf("api: order=%s code=%s created, items=%d", order.ID, order.Code, len(req.Items))
	h.emitOrder(r, order)

	writeJSON(w, http.StatusCreated, orderResponse(order))
}

// emitOrder queues registration. A failed emit leaves the order pending
// for the reconciler, so the checkout still succeeds.
func (h *Handler) emitOrder(r *http.Request, order domain.Order) {
	if h.emitter == nil {
		return
	}
	event := domain.OrderEvent{OrderID: order.ID, CustomerID: order.CustomerID, EmittedAt: h.now().UTC()}
	if err := h.emitter.Emit(r.Context(), event); err != nil {
		log.Printf("api: order=%s emit failed, left for reconciler: %v", order.ID, err)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Identify(w, r)
	if id.CustomerID == "" {
		writeError(w, http.StatusUnauthorized, "no authenticated customer")
		return
	}

	parts := pathParts(r)
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	orderID, err := uuid.Parse(parts[2])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && order.CustomerID != id.CustomerID) {
		// Other customers' orders are indistinguishable from missing ones.
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		log.Printf("api: get order error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	attempts, err := h.store.ListRegistrationAttempts(r.Context(), orderID)
	if err != nil {
		log.Printf("api: list attempts error: order=%s err=%v", orderID, err)
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	resp := orderResponse(order)
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, AttemptResponse{
			Attempt:    a.Attempt,
			StatusCode: a.StatusCode,
			Error:      a.Error,
			StartedAt:  formatTime(a.StartedAt),
			FinishedAt: formatTime(a.FinishedAt),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
