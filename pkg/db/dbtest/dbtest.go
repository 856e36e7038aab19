// Package dbtest provides an in-memory SQLite database shaped like the
// Postgres schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/db"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
)

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE addresses (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  label TEXT NOT NULL,
  recipient TEXT NOT NULL,
  phone TEXT NOT NULL,
  line1 TEXT NOT NULL,
  line2 TEXT,
  city TEXT NOT NULL,
  province TEXT NOT NULL,
  postal_code TEXT NOT NULL,
  country TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price TEXT,
  stock INTEGER CHECK (stock IS NULL OR stock >= 0),
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_carts_user_id UNIQUE (user_id)
);`,
	`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_cart_items_cart_product UNIQUE (cart_id, product_id)
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  total_price TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  shipping_address_id TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  no_invoice TEXT NOT NULL,
  amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'Pending',
  payment_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_transactions_no_invoice UNIQUE (no_invoice)
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
}

// Open returns a fresh, isolated database with the full schema applied.
// The pool is capped at one connection, so concurrent transactions queue
// behind each other instead of failing with SQLITE_BUSY. SQLite ignores
// FOR UPDATE, so tests built on Open never contend on row locks.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Client wraps Open in a db.Client for services that need a unit of work.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}

func MustCreateUser(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Email: fmt.Sprintf("amerta_test_%s@example.com", uuid.NewString()),
		Name:  "Repo Tester",
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

func MustCreateAddress(t *testing.T, conn *gorm.DB, userID uuid.UUID) *models.Address {
	t.Helper()
	address := &models.Address{
		UserID:     userID,
		Label:      "Home",
		Recipient:  "Repo Tester",
		Phone:      "+62811000000",
		Line1:      "Jl. Braga No. 10",
		City:       "Bandung",
		Province:   "Jawa Barat",
		PostalCode: "40111",
		Country:    "ID",
	}
	require.NoError(t, conn.Create(address).Error)
	return address
}

// MustCreateProduct inserts a product. A nil stock stores NULL.
func MustCreateProduct(t *testing.T, conn *gorm.DB, name string, price string, stock *int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:  name,
		Price: decimal.NewNullDecimal(decimal.RequireFromString(price)),
		Stock: stock,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

// MustCreateUnpricedProduct inserts a product whose price is NULL.
func MustCreateUnpricedProduct(t *testing.T, conn *gorm.DB, name string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{Name: name, Stock: &stock}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func MustCreateCartItem(t *testing.T, conn *gorm.DB, userID, productID uuid.UUID, qty int) *models.CartItem {
	t.Helper()
	var cart models.Cart
	err := conn.Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		cart = models.Cart{UserID: userID}
		require.NoError(t, conn.Create(&cart).Error)
	}
	item := &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: qty}
	require.NoError(t, conn.Create(item).Error)
	return item
}

func StockOf(t *testing.T, conn *gorm.DB, productID uuid.UUID) *int {
	t.Helper()
	var product models.Product
	require.NoError(t, conn.First(&product, "id = ?", productID).Error)
	return product.Stock
}

func Count(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func IntPtr(v int) *int {
	return &v
}
