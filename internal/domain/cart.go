package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartItem belongs to an owner, which is a visitor id until the
// visitor logs in and the cart is migrated to the customer id.
type CartItem struct {
	ID        uuid.UUID
	OwnerID   string
	SKU       string
	Quantity  int
	DesignID  string
	CreatedAt time.Time
}

// CartItemPatch carries optional updates; nil fields are left unchanged.
type CartItemPatch struct {
	Quantity *int
	DesignID *string
}

func (p CartItemPatch) Apply(item *CartItem) {
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.DesignID != nil {
		item.DesignID = *p.DesignID
	}
}
