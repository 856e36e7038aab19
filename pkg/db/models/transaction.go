package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
)

// Transaction is the payment record attached one-to-one to an order.
type Transaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	NoInvoice   string                  `gorm:"column:no_invoice;not null;uniqueIndex:ux_transactions_no_invoice"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Status      enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'Pending'"`
	PaymentDate *time.Time              `gorm:"column:payment_date"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
