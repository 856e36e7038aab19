package address

import (
	"context"

	"github.com/google/uuid"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
)

// Service manages the authenticated user's address book.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*DTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]DTO, error)
}

type addressRepository interface {
	Create(ctx context.Context, address *models.Address) (*models.Address, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
}

type service struct {
	repo addressRepository
}

func NewService(repo addressRepository) (Service, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeDependency, "address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*DTO, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user context missing")
	}
	created, err := s.repo.Create(ctx, input.toModel(userID))
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "create address")
	}
	dto := toDTO(*created)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]DTO, error) {
	if userID == uuid.Nil {
		return nil, errors.New(errors.CodeUnauthorized, "user context missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list addresses")
	}
	out := make([]DTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}
