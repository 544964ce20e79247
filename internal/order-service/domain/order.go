package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        string
	OwnerID   string
	Lines     []OrderLine
	Total     decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderLine is owned by exactly one Order and refers back to it by id only.
type OrderLine struct {
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineRequest is one caller-supplied line before any price is known.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// Quote is the per-line snapshot fetched from the collaborators during a saga.
type Quote struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusCommitted OrderStatus = "COMMITTED"
	StatusCancelled OrderStatus = "CANCELLED"

	// StatusCancelling marks an order claimed by a running cancellation.
	StatusCancelling OrderStatus = "CANCELLING"
)

// NewPendingOrder builds an order from priced quotes. The total is always
// recomputed here and never taken from the caller.
func NewPendingOrder(id, ownerID string, quotes []Quote, now time.Time) *Order {
	lines := make([]OrderLine, len(quotes))
	for i, q := range quotes {
		lines[i] = OrderLine{
			OrderID:   id,
			ProductID: q.ProductID,
			Quantity:  q.Quantity,
			UnitPrice: q.UnitPrice,
		}
	}
	return &Order{
		ID:        id,
		OwnerID:   ownerID,
		Lines:     lines,
		Total:     TotalOf(lines),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TotalOf(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (o *Order) OwnedBy(ownerID string) bool {
	return o != nil && ownerID != "" && o.OwnerID == ownerID
}
