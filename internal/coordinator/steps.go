package coordinator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StepKind tags a remote mutation that has already been applied.
type StepKind string

const (
	StockReserved   StepKind = "STOCK_RESERVED"
	BalanceDeducted StepKind = "BALANCE_DEDUCTED"
	StockReleased   StepKind = "STOCK_RELEASED"
	BalanceRefunded StepKind = "BALANCE_REFUNDED"
)

// Step is one confirmed remote side effect. Key identifies the step within a
// saga run ("balance", "line:0", ...) so a resumed run can tell which steps
// it already performed.
type Step struct {
	Kind      StepKind        `json:"kind"`
	Key       string          `json:"key"`
	ProductID string          `json:"product_id,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

func BalanceKey() string { return "balance" }

func LineKey(i int) string { return fmt.Sprintf("line:%d", i) }

func (s Step) String() string {
	switch s.Kind {
	case StockReserved, StockReleased:
		return fmt.Sprintf("%s{%s x%d}", s.Kind, s.ProductID, s.Quantity)
	default:
		return fmt.Sprintf("%s{%s}", s.Kind, s.Amount)
	}
}

// StepLog is the ordered record of mutations performed by one saga run.
// It belongs to a single request and must not be shared.
type StepLog struct {
	steps []Step
}

func NewStepLog(steps ...Step) *StepLog {
	l := &StepLog{}
	for _, s := range steps {
		l.Append(s)
	}
	return l
}

func (l *StepLog) Append(s Step) {
	l.steps = append(l.steps, s)
}

func (l *StepLog) Len() int {
	return len(l.steps)
}

// Steps returns a copy in append order.
func (l *StepLog) Steps() []Step {
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

func (l *StepLog) Has(key string) bool {
	for _, s := range l.steps {
		if s.Key == key {
			return true
		}
	}
	return false
}

// Drain empties the log and returns its steps newest first.
func (l *StepLog) Drain() []Step {
	out := make([]Step, 0, len(l.steps))
	for i := len(l.steps) - 1; i >= 0; i-- {
		out = append(out, l.steps[i])
	}
	l.steps = nil
	return out
}
