package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownProduct    = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient quantity")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Product is a catalog entry. A nil Price means the product is listed but
// cannot be sold yet.
type Product struct {
	ID    string
	Name  string
	Price *decimal.Decimal
}

type StockItem struct {
	ProductID string
	Quantity  int
}
