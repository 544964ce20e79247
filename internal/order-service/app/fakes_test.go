package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-saga/internal/coordinator"
	"github.com/jcmexdev/order-saga/internal/coordinator/sagalog"
	"github.com/jcmexdev/order-saga/internal/order-service/adapters/store"
	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/order-service/ports"
	"github.com/jcmexdev/order-saga/internal/pkg/auth"
)

type fakeProducts struct {
	prices  map[string]decimal.Decimal
	noPrice map[string]bool
	err     error
	lookups int
}

func (f *fakeProducts) Exists(_ context.Context, id string) (bool, error) {
	f.lookups++
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.prices[id]
	return ok || f.noPrice[id], nil
}

func (f *fakeProducts) Price(_ context.Context, id string) (decimal.Decimal, bool, error) {
	if f.err != nil {
		return decimal.Zero, false, f.err
	}
	p, ok := f.prices[id]
	return p, ok, nil
}

type fakeInventory struct {
	mu         sync.Mutex
	stock      map[string]int
	reserveErr map[string]error
	releaseErr error
	calls      []string
}

func (f *fakeInventory) Quantity(_ context.Context, id string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.stock[id]
	return q, ok, nil
}

func (f *fakeInventory) Reserve(_ context.Context, id string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("reserve %s %d", id, qty))
	if err := f.reserveErr[id]; err != nil {
		return err
	}
	if f.stock[id] < qty {
		return fmt.Errorf("%w: not enough %s", ports.ErrRejected, id)
	}
	f.stock[id] -= qty
	return nil
}

func (f *fakeInventory) Release(_ context.Context, id string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("release %s %d", id, qty))
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.stock[id] += qty
	return nil
}

func (f *fakeInventory) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeWallet keys balances by credential token.
type fakeWallet struct {
	mu         sync.Mutex
	balances   map[string]decimal.Decimal
	balanceErr error
	deductErr  error
	refundErr  error
	calls      []string

	refundLostReply error  // applied, then reported as failed
	refundFailOnce  error  // next refund fails without being applied
	onRefund        func() // runs before the refund takes the lock
}

func (f *fakeWallet) Balance(_ context.Context, cred string) (decimal.Decimal, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return decimal.Zero, false, f.balanceErr
	}
	b, ok := f.balances[cred]
	return b, ok, nil
}

func (f *fakeWallet) Deduct(_ context.Context, cred string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "deduct "+amount.String())
	if f.deductErr != nil {
		return f.deductErr
	}
	if f.balances[cred].LessThan(amount) {
		return fmt.Errorf("%w: insufficient balance", ports.ErrRejected)
	}
	f.balances[cred] = f.balances[cred].Sub(amount)
	return nil
}

func (f *fakeWallet) Refund(_ context.Context, cred string, amount decimal.Decimal) error {
	if f.onRefund != nil {
		f.onRefund()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "refund "+amount.String())
	if f.refundErr != nil {
		return f.refundErr
	}
	if err := f.refundFailOnce; err != nil {
		f.refundFailOnce = nil
		return err
	}
	f.balances[cred] = f.balances[cred].Add(amount)
	return f.refundLostReply
}

func (f *fakeWallet) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeWallet) balance(cred string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[cred]
}

// memJournal is an in-memory sagalog.Repository.
type memJournal struct {
	mu   sync.Mutex
	rows []sagalog.SagaLog
}

func (m *memJournal) Save(_ context.Context, e *sagalog.SagaLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *e)
	return nil
}

func (m *memJournal) History(_ context.Context, sagaID string) ([]sagalog.SagaLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sagalog.SagaLog
	for _, r := range m.rows {
		if r.SagaID == sagaID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memJournal) Unfinished(_ context.Context) ([]sagalog.SagaLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[string]sagalog.SagaLog{}
	var order []string
	for _, r := range m.rows {
		if _, seen := latest[r.SagaID]; !seen {
			order = append(order, r.SagaID)
		}
		latest[r.SagaID] = r
	}
	var out []sagalog.SagaLog
	for _, id := range order {
		if !latest[id].Status.Terminal() {
			out = append(out, latest[id])
		}
	}
	return out, nil
}

func (m *memJournal) statuses(sagaID string) []sagalog.Status {
	rows, _ := m.History(context.Background(), sagaID)
	out := make([]sagalog.Status, len(rows))
	for i, r := range rows {
		out[i] = r.Status
	}
	return out
}

func (m *memJournal) last(sagaID string) sagalog.Status {
	s := m.statuses(sagaID)
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

type failingStore struct {
	*store.Memory
	err error
}

func (s failingStore) Create(context.Context, *domain.Order) error { return s.err }

var (
	alice = auth.Credential{Token: "tok-alice", OwnerID: "alice"}
	bob   = auth.Credential{Token: "tok-bob", OwnerID: "bob"}
)

type fixture struct {
	products  *fakeProducts
	inventory *fakeInventory
	wallet    *fakeWallet
	store     *store.Memory
	journal   *memJournal
	orch      *Orchestrator
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		products: &fakeProducts{
			prices: map[string]decimal.Decimal{
				"p1": dec("10.10"),
				"p2": dec("0.30"),
				"p3": dec("0.10"),
			},
			noPrice: map[string]bool{"unpriced": true},
		},
		inventory: &fakeInventory{
			stock:      map[string]int{"p1": 5, "p2": 5, "p3": 100, "unpriced": 1},
			reserveErr: map[string]error{},
		},
		wallet: &fakeWallet{
			balances: map[string]decimal.Decimal{
				alice.Token: dec("100.00"),
				bob.Token:   dec("100.00"),
			},
		},
		store:   store.NewMemory(),
		journal: &memJournal{},
	}
	f.orch = f.build(f.store)
	return f
}

func (f *fixture) build(s ports.OrderStore) *Orchestrator {
	return NewOrchestrator(Deps{
		Products:  f.products,
		Inventory: f.inventory,
		Wallet:    f.wallet,
		Store:     s,
		Journal:   coordinator.NewJournal(f.journal),
	}, Options{Retry: coordinator.RetryPolicy{
		MaxTries:        2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}})
}
