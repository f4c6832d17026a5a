package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus tracks whether an order has been registered with the vendor.
type RegistrationStatus string

const (
	RegistrationPending     RegistrationStatus = "pending"
	RegistrationRegistering RegistrationStatus = "registering" // claimed by a registrar
	RegistrationRegistered  RegistrationStatus = "registered"
	RegistrationFailed      RegistrationStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationRegistered || s == RegistrationFailed
}

type Order struct {
	ID         uuid.UUID
	Code       string
	CustomerID string

	Items json.RawMessage
	Total int64

	Registration  RegistrationStatus
	VendorOrderID string

	OrderDate time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegistrationAttempt records one vendor order registration call.
type RegistrationAttempt struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	Attempt int

	StatusCode int
	Error      string

	StartedAt  time.Time
	FinishedAt time.Time
}

// OrderEvent asks the registrar to register an order with the vendor.
type OrderEvent struct {
	OrderID    uuid.UUID
	CustomerID string
	EmittedAt  time.Time
}

// OrderItem is one line of Order.Items. UnitPrice is in minor currency units.
type OrderItem struct {
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	DesignID  string `json:"designId,omitempty"`
	UnitPrice int64  `json:"unitPrice,omitempty"`
}

// DecodeItems parses Items. An empty value decodes to no items.
func (o Order) DecodeItems() ([]OrderItem, error) {
	if len(o.Items) == 0 {
		return nil, nil
	}
	var items []OrderItem
	if err := json.Unmarshal(o.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}
