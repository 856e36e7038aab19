package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/internal/repo"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
)

// ErrStockConflict is returned when a guarded decrement matched no row,
// meaning the product vanished or its stock dropped below the amount.
var ErrStockConflict = errors.New("inventory: stock conflict")

// Ledger reads and mutates product stock.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	GetStock(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
	GetStockForUpdate(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
	Decrement(ctx context.Context, productID uuid.UUID, amount int) error
}

// Repository is the gorm-backed stock ledger over products.stock.
type Repository struct {
	repo.Base
}

type stockRow struct {
	ID    uuid.UUID `gorm:"column:id"`
	Stock *int      `gorm:"column:stock"`
}

// NewRepository binds the ledger to the provided GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx scopes the ledger to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) Ledger {
	return &Repository{Base: r.Rebind(tx)}
}

// GetStock returns the available stock for every existing product in
// productIDs. Unknown ids are absent from the result; NULL stock maps to 0.
// It takes no locks; checkout reads through GetStockForUpdate instead.
func (r *Repository) GetStock(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return r.loadStock(r.DB(ctx), productIDs)
}

// GetStockForUpdate behaves like GetStock but row-locks the products until
// the enclosing transaction ends. Rows are locked in id order so concurrent
// checkouts over overlapping carts cannot deadlock.
func (r *Repository) GetStockForUpdate(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	return r.loadStock(r.ForUpdate(ctx), productIDs)
}

func (r *Repository) loadStock(q *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	ids := Distinct(productIDs)
	stock := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return stock, nil
	}

	var rows []stockRow
	if err := q.Model(&models.Product{}).
		Select("id", "stock").
		Where("id IN ?", ids).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load product stock: %w", err)
	}

	for _, row := range rows {
		available := 0
		if row.Stock != nil && *row.Stock > 0 {
			available = *row.Stock
		}
		stock[row.ID] = available
	}
	return stock, nil
}

// Decrement subtracts amount from the product's stock relative to its
// current value. The update only applies while stock >= amount, so stock
// never goes negative even without a prior locking read.
func (r *Repository) Decrement(ctx context.Context, productID uuid.UUID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("decrement amount must be positive, got %d", amount)
	}

	res := r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock IS NOT NULL AND stock >= ?", productID, amount).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("decrement stock for %s: %w", productID, res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("decrement stock for %s: %w", productID, ErrStockConflict)
	}
	return nil
}

// Distinct returns the unique ids sorted by their byte representation.
func Distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
