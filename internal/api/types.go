package api

import (
	"encoding/json"
	"time"

	"github.com/TatisVivas/zakekeSample/internal/domain"
)

// ProductRequest upserts a product. Absent fields keep their stored value.
type ProductRequest struct {
	Code         string  `json:"code"`
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	ImageURL     *string `json:"imageUrl,omitempty"`
	BasePrice    *int64  `json:"basePrice,omitempty"`
	Currency     *string `json:"currency,omitempty"`
	Customizable *bool   `json:"customizable,omitempty"`
	ModelCode    *string `json:"zakekeModelCode,omitempty"`
}

// CatalogItem is the shape the vendor's catalog integration expects.
type CatalogItem struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
}

type CartItemRequest struct {
	SKU      string  `json:"sku"`
	Quantity *int    `json:"quantity,omitempty"`
	DesignID *string `json:"designId,omitempty"`
}

type CartItemResponse struct {
	ID        string `json:"id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	DesignID  string `json:"designId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type MigrateCartResponse struct {
	Success  bool `json:"success"`
	Migrated int  `json:"migrated"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type CreateOrderRequest struct {
	Code      string             `json:"code"`
	Items     []domain.OrderItem `json:"items"`
	Total     int64              `json:"total"`
	OrderDate string             `json:"orderDate,omitempty"`
}

type OrderResponse struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	CustomerID    string          `json:"customerId"`
	Items         json.RawMessage `json:"items"`
	Total         int64           `json:"total"`
	Registration  string          `json:"registration"`
	VendorOrderID string          `json:"vendorOrderId,omitempty"`
	OrderDate     string          `json:"orderDate"`
	CreatedAt     string          `json:"createdAt"`

	Attempts []AttemptResponse `json:"attempts,omitempty"`
}

type AttemptResponse struct {
	Attempt    int    `json:"attempt"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt"`
}

type ListOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

type TokenRequest struct {
	AccessType   string `json:"accessType,omitempty"`
	VisitorCode  string `json:"visitorcode,omitempty"`
	CustomerCode string `json:"customercode,omitempty"`
}

type DesignProcessingResponse struct {
	Status       string `json:"status"`
	Attempt      int    `json:"attempt"`
	NextAttempt  int    `json:"nextAttempt"`
	RetryAfterMs int64  `json:"retryAfterMs"`
}

// SellerDesignsProcessingResponse answers a seller-designs request while the
// vendor is temporarily unavailable.
type SellerDesignsProcessingResponse struct {
	Status string `json:"status"`
}

type DesignFailedResponse struct {
	Status     string `json:"status"`
	Reason     string `json:"reason"`
	Attempt    int    `json:"attempt"`
	StatusCode int    `json:"statusCode,omitempty"`
}

type PrintFilesResponse struct {
	URL string `json:"url"`
}

type ValidateModelRequest struct {
	ProductCode string `json:"productCode"`
}

type ValidateModelResponse struct {
	Valid       bool   `json:"valid"`
	ProductCode string `json:"productCode"`
	ModelCode   string `json:"modelCode"`
}

type ModelErrorResponse struct {
	Error       string `json:"error"`
	ProductCode string `json:"productCode"`
	ModelCode   string `json:"modelCode,omitempty"`
}

type AnalyticsResponse struct {
	SKU   string `json:"sku"`
	Kind  string `json:"kind"`
	Hours int    `json:"hours"`
	Count int64  `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func cartItemResponse(item domain.CartItem) CartItemResponse {
	return CartItemResponse{
		ID:        item.ID.String(),
		SKU:       item.SKU,
		Quantity:  item.Quantity,
		DesignID:  item.DesignID,
		CreatedAt: formatTime(item.CreatedAt),
	}
}

func orderResponse(o domain.Order) OrderResponse {
	items := o.Items
	if len(items) == 0 {
		items = json.RawMessage("[]")
	}
	return OrderResponse{
		ID:            o.ID.String(),
		Code:          o.Code,
		CustomerID:    o.CustomerID,
		Items:         items,
		Total:         o.Total,
		Registration:  string(o.Registration),
		VendorOrderID: o.VendorOrderID,
		OrderDate:     formatTime(o.OrderDate),
		CreatedAt:     formatTime(o.CreatedAt),
	}
}
