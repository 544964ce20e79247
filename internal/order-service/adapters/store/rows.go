package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-saga/internal/order-service/domain"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// orderRow and lineRow mirror the orders and order_lines tables. Money is
// stored as decimal text and timestamps as fixed-width UTC text so both
// sqlite and postgres sort and compare them the same way.
type orderRow struct {
	ID        string
	OwnerID   string
	Total     decimal.Decimal
	Status    string
	CreatedAt string
	UpdatedAt string
}

type lineRow struct {
	OrderID   string
	LineNo    int
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func rowFromOrder(o *domain.Order) orderRow {
	return orderRow{
		ID:        o.ID,
		OwnerID:   o.OwnerID,
		Total:     o.Total,
		Status:    string(o.Status),
		CreatedAt: formatTime(o.CreatedAt),
		UpdatedAt: formatTime(o.UpdatedAt),
	}
}

func linesFromOrder(o *domain.Order) []lineRow {
	rows := make([]lineRow, len(o.Lines))
	for i, l := range o.Lines {
		rows[i] = lineRow{
			OrderID:   o.ID,
			LineNo:    i,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return rows
}

func (r orderRow) toDomain(lines []lineRow) (*domain.Order, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("order %s created_at: %w", r.ID, err)
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("order %s updated_at: %w", r.ID, err)
	}

	o := &domain.Order{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Total:     r.Total,
		Status:    domain.OrderStatus(r.Status),
		CreatedAt: created,
		UpdatedAt: updated,
		Lines:     make([]domain.OrderLine, len(lines)),
	}
	for i, l := range lines {
		o.Lines[i] = domain.OrderLine{
			OrderID:   l.OrderID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return o, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
