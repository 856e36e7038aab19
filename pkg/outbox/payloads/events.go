package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent announces an order placed through checkout.
type OrderCreatedEvent struct {
	OrderID           uuid.UUID         `json:"order_id"`
	UserID            uuid.UUID         `json:"user_id"`
	TransactionID     uuid.UUID         `json:"transaction_id"`
	NoInvoice         string            `json:"no_invoice"`
	TotalPrice        decimal.Decimal   `json:"total_price"`
	ShippingAddressID uuid.UUID         `json:"shipping_address_id"`
	Items             []OrderedItemLine `json:"items"`
}

// OrderedItemLine is one purchased product with its snapshot price.
type OrderedItemLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
