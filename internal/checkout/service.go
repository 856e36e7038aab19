package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amerta-coffee/amerta-coffee-api/internal/address"
	"github.com/amerta-coffee/amerta-coffee-api/internal/cart"
	"github.com/amerta-coffee/amerta-coffee-api/internal/inventory"
	"github.com/amerta-coffee/amerta-coffee-api/internal/orders"
	"github.com/amerta-coffee/amerta-coffee-api/internal/pricing"
	product "github.com/amerta-coffee/amerta-coffee-api/internal/products"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/metrics"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/outbox"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/outbox/payloads"
)

const (
	defaultInvoiceAttempts = 5
	invoiceConstraint      = "ux_transactions_no_invoice"
)

type invoiceGenerator interface {
	Generate() (string, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts a user's cart into an order.
type Service interface {
	Checkout(ctx context.Context, userID, shippingAddressID uuid.UUID) (*Result, error)
}

// Result is the committed order with its items and payment transaction.
type Result struct {
	Order       orders.OrderDTO       `json:"order"`
	Transaction orders.TransactionDTO `json:"transaction"`
}

// StockShortage describes one product the cart asks more of than is on hand.
type StockShortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

type ServiceParams struct {
	TX                 db.TxRunner
	Carts              cart.CartRepository
	Addresses          address.Lookup
	Products           product.Reader
	Inventory          inventory.Ledger
	Orders             orders.Repository
	Invoices           invoiceGenerator
	Outbox             outboxPublisher
	Metrics            *metrics.Checkout
	Logger             *logger.Logger
	InvoiceMaxAttempts int
	Now                func() time.Time
}

type service struct {
	tx              db.TxRunner
	carts           cart.CartRepository
	addresses       address.Lookup
	products        product.Reader
	inventory       inventory.Ledger
	orders          orders.Repository
	invoices        invoiceGenerator
	outbox          outboxPublisher
	metrics         *metrics.Checkout
	logg            *logger.Logger
	invoiceAttempts int
	now             func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.TX == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address lookup required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice generator required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	attempts := params.InvoiceMaxAttempts
	if attempts <= 0 {
		attempts = defaultInvoiceAttempts
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:              params.TX,
		carts:           params.Carts,
		addresses:       params.Addresses,
		products:        params.Products,
		inventory:       params.Inventory,
		orders:          params.Orders,
		invoices:        params.Invoices,
		outbox:          params.Outbox,
		metrics:         params.Metrics,
		logg:            params.Logger,
		invoiceAttempts: attempts,
		now:             now,
	}, nil
}

func (s *service) Checkout(ctx context.Context, userID, shippingAddressID uuid.UUID) (*Result, error) {
	started := time.Now()
	result, err := s.checkout(ctx, userID, shippingAddressID)
	s.metrics.Observe(resultLabel(err), time.Since(started))
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"no_invoice":  result.Transaction.NoInvoice,
			"total_price": result.Order.TotalPrice.String(),
			"item_count":  len(result.Order.Items),
		})
		s.logg.Info(logCtx, "checkout completed")
	}
	return result, nil
}

func (s *service) checkout(ctx context.Context, userID, shippingAddressID uuid.UUID) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	if shippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping_address_id is required")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)
		ledger := s.inventory.WithTx(tx)

		// The cart row lock serializes concurrent checkouts of one cart.
		record, err := carts.LockForUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
		}
		items, err := carts.ListItems(ctx, record.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}

		owned, err := s.addresses.WithTx(tx).ExistsForUser(ctx, userID, shippingAddressID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping address")
		}
		if !owned {
			return pkgerrors.New(pkgerrors.CodeAddressNotFound, "shipping address not found")
		}

		quantities, productIDs := aggregate(items)
		stock, err := ledger.GetStockForUpdate(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product stock")
		}
		// Re-read after locking so names and prices match the rows being decremented.
		products, err := s.products.WithTx(tx).FindByIDs(ctx, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}

		if shortages := findShortages(items, quantities, stock, products); len(shortages) > 0 {
			return insufficientStock(shortages)
		}

		lines := make([]pricing.Line, 0, len(items))
		for _, item := range items {
			p := products[item.ProductID]
			lines = append(lines, pricing.Line{
				ProductID:   p.ID,
				ProductName: p.Name,
				Price:       p.Price,
				Quantity:    item.Quantity,
			})
		}
		total, err := pricing.Total(lines)
		if err != nil {
			return cart.ComputationError(err)
		}

		order, err := ordersRepo.CreateOrder(ctx, &models.Order{
			UserID:            userID,
			TotalPrice:        total,
			Status:            enums.OrderStatusPending,
			ShippingAddressID: shippingAddressID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			orderItems = append(orderItems, models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     products[item.ProductID].Price.Decimal,
			})
		}
		if err := ordersRepo.CreateOrderItems(ctx, orderItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		order.Items = orderItems

		for _, productID := range productIDs {
			if err := ledger.Decrement(ctx, productID, quantities[productID]); err != nil {
				if errors.Is(err, inventory.ErrStockConflict) {
					p := products[productID]
					return insufficientStock([]StockShortage{{
						ProductID: productID,
						Name:      p.Name,
						Requested: quantities[productID],
						Available: stock[productID],
					}})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
		}

		txn, err := s.createTransaction(ctx, tx, order)
		if err != nil {
			return err
		}
		order.Transaction = txn

		if _, err := carts.ClearItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		if err := s.outbox.Emit(ctx, tx, orderCreatedEvent(order, txn)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order_created")
		}

		result = &Result{
			Order:       orders.ToDTO(*order),
			Transaction: orders.TransactionToDTO(*txn),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createTransaction inserts the payment record, drawing a new invoice number
// whenever the previous one collides. Each attempt runs in a savepoint so a
// collision does not abort the enclosing transaction.
func (s *service) createTransaction(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Transaction, error) {
	paidAt := s.now().UTC()
	for attempt := 1; attempt <= s.invoiceAttempts; attempt++ {
		number, err := s.invoices.Generate()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invoice number")
		}

		txn := &models.Transaction{
			OrderID:     order.ID,
			NoInvoice:   number,
			Amount:      order.TotalPrice,
			Status:      enums.TransactionStatusPending,
			PaymentDate: &paidAt,
		}
		err = tx.Transaction(func(sp *gorm.DB) error {
			_, err := s.orders.WithTx(sp).CreateTransaction(ctx, txn)
			return err
		})
		if err == nil {
			return txn, nil
		}
		if !db.IsUniqueViolation(err, invoiceConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
		}

		s.metrics.IncInvoiceCollision()
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"no_invoice": number, "attempt": attempt})
			s.logg.Warn(logCtx, "invoice number collision")
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeInternal, "unable to allocate invoice number after %d attempts", s.invoiceAttempts)
}

// aggregate sums quantities per product and returns the distinct ids in lock
// order.
func aggregate(items []models.CartItem) (map[uuid.UUID]int, []uuid.UUID) {
	quantities := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		quantities[item.ProductID] += item.Quantity
		ids = append(ids, item.ProductID)
	}
	return quantities, inventory.Distinct(ids)
}

func findShortages(items []models.CartItem, quantities, stock map[uuid.UUID]int, products map[uuid.UUID]models.Product) []StockShortage {
	seen := make(map[uuid.UUID]struct{}, len(quantities))
	var out []StockShortage
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}

		available := stock[item.ProductID]
		requested := quantities[item.ProductID]
		if requested <= available {
			continue
		}
		name := products[item.ProductID].Name
		if name == "" && item.Product != nil {
			name = item.Product.Name
		}
		out = append(out, StockShortage{
			ProductID: item.ProductID,
			Name:      name,
			Requested: requested,
			Available: available,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func insufficientStock(shortages []StockShortage) error {
	parts := make([]string, 0, len(shortages))
	for _, sh := range shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", sh.Name, sh.Requested, sh.Available))
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for "+strings.Join(parts, ", ")).
		WithDetails(shortages)
}

func orderCreatedEvent(order *models.Order, txn *models.Transaction) outbox.DomainEvent {
	lines := make([]payloads.OrderedItemLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderedItemLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.Actor{UserID: order.UserID},
		Data: payloads.OrderCreatedEvent{
			OrderID:           order.ID,
			UserID:            order.UserID,
			TransactionID:     txn.ID,
			NoInvoice:         txn.NoInvoice,
			TotalPrice:        order.TotalPrice,
			ShippingAddressID: order.ShippingAddressID,
			Items:             lines,
		},
		OccurredAt: order.CreatedAt,
	}
}

func resultLabel(err error) string {
	if err == nil {
		return metrics.CheckoutResultSuccess
	}
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}
