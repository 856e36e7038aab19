package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/dbtest"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
)

func createOrder(t *testing.T, conn *gorm.DB, userID, addressID uuid.UUID, total string, created time.Time) *models.Order {
	t.Helper()
	repo := NewRepository(conn)
	order, err := repo.CreateOrder(context.Background(), &models.Order{
		UserID:            userID,
		TotalPrice:        decimal.RequireFromString(total),
		Status:            enums.OrderStatusPending,
		ShippingAddressID: addressID,
		CreatedAt:         created,
	})
	require.NoError(t, err)
	return order
}

func TestRepositoryCreateAndFindByIDForUser(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	user := dbtest.MustCreateUser(t, conn)
	addr := dbtest.MustCreateAddress(t, conn, user.ID)
	beans := dbtest.MustCreateProduct(t, conn, "Aceh Gayo", "45000", dbtest.IntPtr(10))

	order := createOrder(t, conn, user.ID, addr.ID, "90000", time.Now().UTC())
	require.NoError(t, repo.CreateOrderItems(ctx, []models.OrderItem{
		{OrderID: order.ID, ProductID: beans.ID, Quantity: 2, Price: decimal.RequireFromString("45000")},
	}))
	paid := time.Now().UTC()
	_, err := repo.CreateTransaction(ctx, &models.Transaction{
		OrderID:     order.ID,
		NoInvoice:   "INV-20261015-ABC123",
		Amount:      decimal.RequireFromString("90000"),
		Status:      enums.TransactionStatusPending,
		PaymentDate: &paid,
	})
	require.NoError(t, err)

	found, err := repo.FindByIDForUser(ctx, user.ID, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.True(t, found.Items[0].Price.Equal(decimal.NewFromInt(45000)))
	require.NotNil(t, found.Transaction)
	assert.Equal(t, "INV-20261015-ABC123", found.Transaction.NoInvoice)
	assert.True(t, found.TotalPrice.Equal(decimal.NewFromInt(90000)))

	_, err = repo.FindByIDForUser(ctx, uuid.New(), order.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryCreateOrderItemsEmptyIsNoop(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, NewRepository(conn).CreateOrderItems(context.Background(), nil))
	assert.Equal(t, int64(0), dbtest.Count(t, conn, &models.OrderItem{}))
}

func TestRepositoryInvoiceNumbersAreUnique(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	user := dbtest.MustCreateUser(t, conn)
	addr := dbtest.MustCreateAddress(t, conn, user.ID)
	first := createOrder(t, conn, user.ID, addr.ID, "10", time.Now().UTC())
	second := createOrder(t, conn, user.ID, addr.ID, "10", time.Now().UTC())

	_, err := repo.CreateTransaction(ctx, &models.Transaction{OrderID: first.ID, NoInvoice: "INV-20261015-AAAAAA", Amount: decimal.NewFromInt(10), Status: enums.TransactionStatusPending})
	require.NoError(t, err)
	_, err = repo.CreateTransaction(ctx, &models.Transaction{OrderID: second.ID, NoInvoice: "INV-20261015-AAAAAA", Amount: decimal.NewFromInt(10), Status: enums.TransactionStatusPending})
	require.Error(t, err)
}

func TestRepositoryListByUserPaginatesNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	user := dbtest.MustCreateUser(t, conn)
	other := dbtest.MustCreateUser(t, conn)
	addr := dbtest.MustCreateAddress(t, conn, user.ID)

	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		ids = append(ids, createOrder(t, conn, user.ID, addr.ID, "1000", base.Add(time.Duration(i)*time.Hour)).ID)
	}
	createOrder(t, conn, other.ID, addr.ID, "1000", base)

	page, next, err := repo.ListByUser(ctx, user.ID, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
	require.NotNil(t, next)

	page, next, err = repo.ListByUser(ctx, user.ID, ListQuery{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Nil(t, next)
}
