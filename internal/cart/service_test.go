package cart

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/amerta-coffee/amerta-coffee-api/internal/products"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/dbtest"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
)

type fixture struct {
	svc  Service
	conn *gorm.DB
	user *models.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := NewService(NewRepository(conn), client, product.NewRepository(conn))
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, user: dbtest.MustCreateUser(t, conn)}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "message: %s", typed.Message())
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	client, conn := dbtest.Client(t)

	_, err := NewService(nil, client, product.NewRepository(conn))
	require.Error(t, err)
	_, err = NewService(NewRepository(conn), nil, product.NewRepository(conn))
	require.Error(t, err)
	_, err = NewService(NewRepository(conn), client, nil)
	require.Error(t, err)
}

func TestGetOrCreateCartCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateCart(ctx, f.user.ID)
	require.NoError(t, err)
	second, err := f.svc.GetOrCreateCart(ctx, f.user.ID)
	require.NoError(t, err)

	assert.Equal(t, first.CartID, second.CartID)
	assert.Empty(t, second.Items)
	assert.True(t, second.Total.IsZero())
	assert.Equal(t, int64(1), dbtest.Count(t, f.conn, &models.Cart{}))
}

func TestGetOrCreateCartConcurrentFirstAccess(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.GetOrCreateCart(context.Background(), f.user.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), dbtest.Count(t, f.conn, &models.Cart{}))
}

func TestGetOrCreateCartSortsByNameAndTotals(t *testing.T) {
	f := newFixture(t)
	toraja := dbtest.MustCreateProduct(t, f.conn, "Toraja Sapan", "30000", dbtest.IntPtr(10))
	gayo := dbtest.MustCreateProduct(t, f.conn, "Aceh Gayo", "45000", dbtest.IntPtr(10))
	dbtest.MustCreateCartItem(t, f.conn, f.user.ID, toraja.ID, 1)
	dbtest.MustCreateCartItem(t, f.conn, f.user.ID, gayo.ID, 2)

	view, err := f.svc.GetOrCreateCart(context.Background(), f.user.ID)
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, "Aceh Gayo", view.Items[0].ProductName)
	assert.Equal(t, "Toraja Sapan", view.Items[1].ProductName)
	assert.Equal(t, "90000", view.Items[0].Subtotal.String())
	assert.Equal(t, "120000", view.Total.String())
}

func TestGetOrCreateCartFailsOnUnpricedProduct(t *testing.T) {
	f := newFixture(t)
	unpriced := dbtest.MustCreateUnpricedProduct(t, f.conn, "Mystery Blend", 4)
	dbtest.MustCreateCartItem(t, f.conn, f.user.ID, unpriced.ID, 1)

	_, err := f.svc.GetOrCreateCart(context.Background(), f.user.ID)
	requireCode(t, err, pkgerrors.CodeComputation)
	assert.Contains(t, pkgerrors.As(err).Message(), "Mystery Blend")
}

func TestUpsertItemIncrementCreatesThenUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := dbtest.MustCreateProduct(t, f.conn, "Kintamani", "52000", dbtest.IntPtr(5))

	res, err := f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: 2, Mode: enums.UpsertModeIncrement})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, 2, res.Item.Quantity)

	res, err = f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: 3, Mode: enums.UpsertModeIncrement})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, 5, res.Item.Quantity)

	assert.Equal(t, int64(1), dbtest.Count(t, f.conn, &models.CartItem{}))
}

func TestUpsertItemSetOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := dbtest.MustCreateProduct(t, f.conn, "Bali Kintamani", "52000", dbtest.IntPtr(5))
	dbtest.MustCreateCartItem(t, f.conn, f.user.ID, prod.ID, 4)

	res, err := f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: 1, Mode: enums.UpsertModeSet})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, 1, res.Item.Quantity)

	view, err := f.svc.GetOrCreateCart(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestUpsertItemOverLimitLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	prod := dbtest.MustCreateProduct(t, f.conn, "Flores Bajawa", "48000", dbtest.IntPtr(3))

	_, err := f.svc.UpsertItem(context.Background(), f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: 5, Mode: enums.UpsertModeIncrement})
	requireCode(t, err, pkgerrors.CodeInvalidQuantity)
	msg := pkgerrors.As(err).Message()
	assert.Contains(t, msg, "Flores Bajawa")
	assert.Contains(t, msg, "3 available")

	assert.Equal(t, 3, *dbtest.StockOf(t, f.conn, prod.ID))
	assert.Equal(t, int64(0), dbtest.Count(t, f.conn, &models.CartItem{}))
}

func TestUpsertItemIncrementCountsExistingQuantity(t *testing.T) {
	f := newFixture(t)
	prod := dbtest.MustCreateProduct(t, f.conn, "Java Preanger", "41000", dbtest.IntPtr(4))
	dbtest.MustCreateCartItem(t, f.conn, f.user.ID, prod.ID, 3)

	_, err := f.svc.UpsertItem(context.Background(), f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: 2, Mode: enums.UpsertModeIncrement})
	requireCode(t, err, pkgerrors.CodeInvalidQuantity)
}

func TestUpsertItemIncrementHugeQuantityIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := dbtest.MustCreateProduct(t, f.conn, "Toraja Sapan", "58000", dbtest.IntPtr(5))
	dbtest.MustCreateCartItem(t, f.conn, f.user.ID, prod.ID, 2)

	_, err := f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: math.MaxInt, Mode: enums.UpsertModeIncrement})
	requireCode(t, err, pkgerrors.CodeInvalidQuantity)
	assert.Contains(t, pkgerrors.As(err).Message(), "2 in cart")

	view, err := f.svc.GetOrCreateCart(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestUpsertItemDraftProductIsNotPurchasable(t *testing.T) {
	f := newFixture(t)
	draft := dbtest.MustCreateProduct(t, f.conn, "Draft Roast", "10000", nil)

	_, err := f.svc.UpsertItem(context.Background(), f.user.ID, UpsertItemInput{ProductID: draft.ID, Quantity: 1, Mode: enums.UpsertModeIncrement})
	requireCode(t, err, pkgerrors.CodeInvalidQuantity)
}

func TestUpsertItemProductNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpsertItem(context.Background(), f.user.ID, UpsertItemInput{ProductID: uuid.New(), Quantity: 1, Mode: enums.UpsertModeIncrement})
	requireCode(t, err, pkgerrors.CodeProductNotFound)
}

func TestUpsertItemSetZeroRemovesItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := dbtest.MustCreateProduct(t, f.conn, "Papua Wamena", "65000", dbtest.IntPtr(5))
	dbtest.MustCreateCartItem(t, f.conn, f.user.ID, prod.ID, 2)

	res, err := f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: 0, Mode: enums.UpsertModeSet})
	require.NoError(t, err)
	assert.Equal(t, ActionRemoved, res.Action)
	assert.Nil(t, res.Item)
	assert.Equal(t, int64(0), dbtest.Count(t, f.conn, &models.CartItem{}))

	_, err = f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: 0, Mode: enums.UpsertModeSet})
	requireCode(t, err, pkgerrors.CodeCartItemNotFound)
}

func TestUpsertItemRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prodID := uuid.New()

	_, err := f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prodID, Quantity: -1, Mode: enums.UpsertModeSet})
	requireCode(t, err, pkgerrors.CodeInvalidQuantity)

	_, err = f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prodID, Quantity: 0, Mode: enums.UpsertModeIncrement})
	requireCode(t, err, pkgerrors.CodeInvalidQuantity)

	_, err = f.svc.UpsertItem(ctx, f.user.ID, UpsertItemInput{ProductID: prodID, Quantity: 1, Mode: "REPLACE"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.UpsertItem(ctx, uuid.Nil, UpsertItemInput{ProductID: prodID, Quantity: 1, Mode: enums.UpsertModeSet})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestUpsertItemConcurrentIncrementsKeepOneRow(t *testing.T) {
	f := newFixture(t)
	prod := dbtest.MustCreateProduct(t, f.conn, "Sumatra Mandheling", "55000", dbtest.IntPtr(100))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.UpsertItem(context.Background(), f.user.ID, UpsertItemInput{ProductID: prod.ID, Quantity: 1, Mode: enums.UpsertModeIncrement})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var items []models.CartItem
	require.NoError(t, f.conn.Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestDeleteItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prod := dbtest.MustCreateProduct(t, f.conn, "Halu Banjaran", "70000", dbtest.IntPtr(5))
	dbtest.MustCreateCartItem(t, f.conn, f.user.ID, prod.ID, 2)

	deleted, err := f.svc.DeleteItem(ctx, f.user.ID, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, prod.ID, deleted.ProductID)
	assert.Equal(t, "Halu Banjaran", deleted.ProductName)
	assert.Equal(t, int64(0), dbtest.Count(t, f.conn, &models.CartItem{}))
	assert.Equal(t, int64(1), dbtest.Count(t, f.conn, &models.Cart{}))

	_, err = f.svc.DeleteItem(ctx, f.user.ID, prod.ID)
	requireCode(t, err, pkgerrors.CodeCartItemNotFound)
}

func TestDeleteItemWithoutCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.DeleteItem(context.Background(), f.user.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeCartItemNotFound)
}
