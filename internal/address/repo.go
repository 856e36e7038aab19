package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/internal/repo"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
)

// Lookup answers ownership checks for addresses inside a transaction.
type Lookup interface {
	WithTx(tx *gorm.DB) Lookup
	ExistsForUser(ctx context.Context, userID, addressID uuid.UUID) (bool, error)
}

// Repository persists user shipping addresses.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) Lookup {
	return &Repository{Base: r.Rebind(tx)}
}

// ExistsForUser reports whether addressID exists and is owned by userID.
func (r *Repository) ExistsForUser(ctx context.Context, userID, addressID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addressID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) Create(ctx context.Context, address *models.Address) (*models.Address, error) {
	if err := r.DB(ctx).Create(address).Error; err != nil {
		return nil, err
	}
	return address, nil
}

// ListByUser returns the user's addresses, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
