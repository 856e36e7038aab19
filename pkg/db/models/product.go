package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product carries the catalog attributes checkout depends on.
type Product struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name string    `gorm:"column:name;not null"`
	// Price is NULL for products without a usable list price.
	Price decimal.NullDecimal `gorm:"column:price;type:numeric(12,2)"`
	// Stock is NULL for draft or untracked products, which are not purchasable.
	Stock     *int      `gorm:"column:stock"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// AvailableStock returns the purchasable quantity, treating NULL as zero.
func (p Product) AvailableStock() int {
	if p.Stock == nil || *p.Stock < 0 {
		return 0
	}
	return *p.Stock
}
