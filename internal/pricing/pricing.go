// Package pricing computes order and cart totals in fixed-point decimal.
package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnpricedProduct marks a line whose product price cannot be used.
var ErrUnpricedProduct = errors.New("pricing: product price unavailable")

// Line is one priced quantity.
type Line struct {
	ProductID   uuid.UUID
	ProductName string
	Price       decimal.NullDecimal
	Quantity    int
}

// LineError identifies the line that failed to price.
type LineError struct {
	ProductID   uuid.UUID
	ProductName string
	Err         error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("price %q (%s): %v", e.ProductName, e.ProductID, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// LineAmount returns quantity x price.
func LineAmount(line Line) (decimal.Decimal, error) {
	if !line.Price.Valid || line.Price.Decimal.IsNegative() {
		return decimal.Zero, &LineError{ProductID: line.ProductID, ProductName: line.ProductName, Err: ErrUnpricedProduct}
	}
	if line.Quantity < 0 {
		return decimal.Zero, &LineError{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Err:         fmt.Errorf("negative quantity %d", line.Quantity),
		}
	}
	return line.Price.Decimal.Mul(decimal.NewFromInt(int64(line.Quantity))), nil
}

// Total sums every line amount. It stops at the first unpriceable line
// instead of returning a partial sum.
func Total(lines []Line) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, line := range lines {
		amount, err := LineAmount(line)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(amount)
	}
	return total, nil
}
