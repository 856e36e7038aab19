package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/pagination"
)

// Repository defines persistence operations for orders, their items and
// the attached payment transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	FindByIDForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params ListQuery) ([]models.Order, *pagination.Cursor, error)
}

// ListQuery is the normalized page request passed to the repository.
type ListQuery struct {
	Limit  int
	Cursor *pagination.Cursor
}
