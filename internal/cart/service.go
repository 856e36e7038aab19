package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/amerta-coffee/amerta-coffee-api/internal/products"
	"github.com/amerta-coffee/amerta-coffee-api/internal/pricing"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db/models"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/enums"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
)

// Service exposes cart mutations for the authenticated user.
type Service interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*View, error)
	UpsertItem(ctx context.Context, userID uuid.UUID, input UpsertItemInput) (*UpsertResult, error)
	DeleteItem(ctx context.Context, userID, productID uuid.UUID) (*ItemView, error)
}

type service struct {
	repo     CartRepository
	tx       db.TxRunner
	products product.Reader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx db.TxRunner, products product.Reader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

func (s *service) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.GetOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
		}
		items, err := repo.ListItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}

		view, err = buildView(cart, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) UpsertItem(ctx context.Context, userID uuid.UUID, input UpsertItemInput) (*UpsertResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "mode must be %s or %s", enums.UpsertModeIncrement, enums.UpsertModeSet)
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must not be negative")
	}
	if input.Mode == enums.UpsertModeIncrement && input.Quantity == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}

	var result *UpsertResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Reads share the transaction's single connection and run in sequence.
		cart, err := repo.LockForUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
		}
		prod, err := s.products.WithTx(tx).FindByID(ctx, input.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		existing, err := repo.FindItem(ctx, cart.ID, prod.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		inCart := 0
		if input.Mode == enums.UpsertModeIncrement && existing != nil {
			inCart = existing.Quantity
		}

		// Checked against the remaining headroom so inCart+quantity never overflows.
		available := prod.AvailableStock()
		if input.Quantity > available-inCart {
			return pkgerrors.Newf(pkgerrors.CodeInvalidQuantity,
				"requested quantity %d for %s exceeds available stock (%d available, %d in cart)", input.Quantity, prod.Name, available, inCart).
				WithDetails(map[string]any{
					"product_id": prod.ID,
					"requested":  input.Quantity,
					"in_cart":    inCart,
					"available":  available,
				})
		}
		newQty := inCart + input.Quantity

		if input.Mode == enums.UpsertModeSet && newQty == 0 {
			if existing == nil {
				return pkgerrors.New(pkgerrors.CodeCartItemNotFound, "cart item not found")
			}
			if err := repo.DeleteItem(ctx, existing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
			}
			result = &UpsertResult{
				Action:  ActionRemoved,
				Message: fmt.Sprintf("%s removed from cart", prod.Name),
			}
			return nil
		}

		action := ActionUpdated
		item := existing
		if item == nil {
			action = ActionCreated
			item, err = repo.CreateItem(ctx, &models.CartItem{CartID: cart.ID, ProductID: prod.ID, Quantity: newQty})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		} else {
			if err := repo.UpdateItemQuantity(ctx, item.ID, newQty); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			item.Quantity = newQty
		}

		view := itemView(*item, prod)
		result = &UpsertResult{Action: action, Item: &view}
		if action == ActionCreated {
			result.Message = fmt.Sprintf("%s added to cart", prod.Name)
		} else {
			result.Message = fmt.Sprintf("%s quantity updated to %d", prod.Name, newQty)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) DeleteItem(ctx context.Context, userID, productID uuid.UUID) (*ItemView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}

	var deleted *ItemView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindByUser(ctx, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeCartItemNotFound, "cart item not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart")
		}
		item, err := repo.FindItem(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeCartItemNotFound, "cart item not found")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		view := itemView(*item, item.Product)
		deleted = &view
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func buildView(cart *models.Cart, items []models.CartItem) (*View, error) {
	sort.SliceStable(items, func(i, j int) bool {
		return productName(items[i]) < productName(items[j])
	})

	lines := make([]pricing.Line, 0, len(items))
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView(item, item.Product))
		line := pricing.Line{ProductID: item.ProductID, Quantity: item.Quantity}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.Price = item.Product.Price
		}
		lines = append(lines, line)
	}

	total, err := pricing.Total(lines)
	if err != nil {
		return nil, ComputationError(err)
	}
	return &View{CartID: cart.ID, UserID: cart.UserID, Items: views, Total: total}, nil
}

func itemView(item models.CartItem, prod *models.Product) ItemView {
	view := ItemView{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Price:     decimal.Zero,
		Subtotal:  decimal.Zero,
	}
	if prod != nil {
		view.ProductName = prod.Name
		if prod.Price.Valid {
			view.Price = prod.Price.Decimal
			view.Subtotal = prod.Price.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
	}
	return view
}

func productName(item models.CartItem) string {
	if item.Product == nil {
		return ""
	}
	return item.Product.Name
}

// ComputationError converts a pricing failure into COMPUTATION_ERROR naming
// the offending product.
func ComputationError(err error) error {
	var lineErr *pricing.LineError
	if errors.As(err, &lineErr) {
		return pkgerrors.Wrap(pkgerrors.CodeComputation, err,
			fmt.Sprintf("price for %s is not a valid amount", lineErr.ProductName)).
			WithDetails(map[string]any{"product_id": lineErr.ProductID})
	}
	return pkgerrors.Wrap(pkgerrors.CodeComputation, err, "unable to compute total")
}
