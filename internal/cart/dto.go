package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
)

// View is the cart as returned to its owner.
type View struct {
	CartID uuid.UUID       `json:"cart_id"`
	UserID uuid.UUID       `json:"user_id"`
	Items  []ItemView      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// ItemView is one cart line with its current product data.
type ItemView struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// UpsertItemInput carries a quantity change for one product.
type UpsertItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Mode      enums.UpsertMode
}

// Action reports what an upsert did to the cart.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionRemoved Action = "removed"
)

// UpsertResult is the outcome of UpsertItem. Item is nil when the line was
// removed.
type UpsertResult struct {
	Action  Action    `json:"action"`
	Message string    `json:"message"`
	Item    *ItemView `json:"item,omitempty"`
}
