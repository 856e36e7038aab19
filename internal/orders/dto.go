package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
)

// OrderDTO is the order as returned to its owner.
type OrderDTO struct {
	ID                uuid.UUID         `json:"id"`
	UserID            uuid.UUID         `json:"user_id"`
	Status            enums.OrderStatus `json:"status"`
	TotalPrice        decimal.Decimal   `json:"total_price"`
	ShippingAddressID uuid.UUID         `json:"shipping_address_id"`
	Items             []OrderItemDTO    `json:"items"`
	Transaction       *TransactionDTO   `json:"transaction,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// OrderItemDTO carries the purchase-time unit price.
type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type TransactionDTO struct {
	ID          uuid.UUID               `json:"id"`
	NoInvoice   string                  `json:"no_invoice"`
	Amount      decimal.Decimal         `json:"amount"`
	Status      enums.TransactionStatus `json:"status"`
	PaymentDate *time.Time              `json:"payment_date,omitempty"`
}

// OrderList wraps one page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ToDTO maps a persisted order, including any loaded items and transaction.
func ToDTO(order models.Order) OrderDTO {
	out := OrderDTO{
		ID:                order.ID,
		UserID:            order.UserID,
		Status:            order.Status,
		TotalPrice:        order.TotalPrice,
		ShippingAddressID: order.ShippingAddressID,
		Items:             make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:         order.CreatedAt,
	}
	for _, item := range order.Items {
		out.Items = append(out.Items, OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	if order.Transaction != nil {
		txn := TransactionToDTO(*order.Transaction)
		out.Transaction = &txn
	}
	return out
}

func TransactionToDTO(txn models.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          txn.ID,
		NoInvoice:   txn.NoInvoice,
		Amount:      txn.Amount,
		Status:      txn.Status,
		PaymentDate: txn.PaymentDate,
	}
}
