package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/pagination"
)

type stubRepo struct {
	order     *models.Order
	findErr   error
	rows      []models.Order
	next      *pagination.Cursor
	listErr   error
	lastQuery ListQuery
}

func (s *stubRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubRepo) CreateOrder(context.Context, *models.Order) (*models.Order, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRepo) CreateOrderItems(context.Context, []models.OrderItem) error {
	return errors.New("not implemented")
}

func (s *stubRepo) CreateTransaction(context.Context, *models.Transaction) (*models.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRepo) FindByIDForUser(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return s.order, s.findErr
}

func (s *stubRepo) ListByUser(_ context.Context, _ uuid.UUID, q ListQuery) ([]models.Order, *pagination.Cursor, error) {
	s.lastQuery = q
	return s.rows, s.next, s.listErr
}

func TestServiceGet(t *testing.T) {
	orderID := uuid.New()
	repo := &stubRepo{order: &models.Order{
		ID:         orderID,
		Status:     enums.OrderStatusPending,
		TotalPrice: decimal.NewFromInt(120000),
		Items:      []models.OrderItem{{ProductID: uuid.New(), Quantity: 2, Price: decimal.NewFromInt(45000)}},
		Transaction: &models.Transaction{
			NoInvoice: "INV-20261015-Q1W2E3",
			Status:    enums.TransactionStatusPending,
			Amount:    decimal.NewFromInt(120000),
		},
	}}
	svc, err := NewService(repo)
	require.NoError(t, err)

	dto, err := svc.Get(context.Background(), uuid.New(), orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, dto.ID)
	require.Len(t, dto.Items, 1)
	require.NotNil(t, dto.Transaction)
	assert.Equal(t, "INV-20261015-Q1W2E3", dto.Transaction.NoInvoice)
}

func TestServiceGetNotFound(t *testing.T) {
	svc, err := NewService(&stubRepo{findErr: gorm.ErrRecordNotFound})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceGetWrapsRepositoryFailure(t *testing.T) {
	svc, err := NewService(&stubRepo{findErr: errors.New("connection reset")})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestServiceListEncodesCursor(t *testing.T) {
	created := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	nextID := uuid.New()
	repo := &stubRepo{
		rows: []models.Order{{ID: uuid.New()}},
		next: &pagination.Cursor{CreatedAt: created, ID: nextID},
	}
	svc, err := NewService(repo)
	require.NoError(t, err)

	list, err := svc.List(context.Background(), uuid.New(), pagination.Params{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, pagination.MaxLimit, repo.lastQuery.Limit)
	require.Len(t, list.Orders, 1)

	decoded, err := pagination.ParseCursor(list.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, nextID, decoded.ID)
	assert.True(t, decoded.CreatedAt.Equal(created))
}

func TestServiceListRejectsBadCursor(t *testing.T) {
	svc, err := NewService(&stubRepo{})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), uuid.New(), pagination.Params{Cursor: "not-a-cursor"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceRequiresUser(t *testing.T) {
	svc, err := NewService(&stubRepo{})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), uuid.Nil, pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	_, err = svc.Get(context.Background(), uuid.Nil, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}
