// Package app keeps wallet balances in memory, keyed by owner id.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrNoWallet            = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

type Wallets struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

func NewWallets() *Wallets {
	return &Wallets{balances: make(map[string]decimal.Decimal)}
}

// Balance reports false when the owner has no wallet yet.
func (s *Wallets) Balance(_ context.Context, ownerID string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[ownerID]
	return b, ok
}

// Assign sets the balance, creating the wallet if needed. It reports whether
// the wallet was created.
func (s *Wallets) Assign(ctx context.Context, ownerID string, amount decimal.Decimal) (bool, error) {
	if amount.IsNegative() {
		return false, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.balances[ownerID]
	s.balances[ownerID] = amount
	slog.InfoContext(ctx, "balance assigned", "owner_id", ownerID, "balance", amount.String())
	return !existed, nil
}

// Deduct checks and decrements under one lock.
func (s *Wallets) Deduct(ctx context.Context, ownerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.balances[ownerID]
	if !ok || current.LessThan(amount) {
		slog.InfoContext(ctx, "deduction declined", "owner_id", ownerID, "amount", amount.String())
		return current, fmt.Errorf("%w: requested %s", ErrInsufficientBalance, amount)
	}
	s.balances[ownerID] = current.Sub(amount)
	slog.InfoContext(ctx, "balance deducted", "owner_id", ownerID, "amount", amount.String())
	return s.balances[ownerID], nil
}

func (s *Wallets) Refund(ctx context.Context, ownerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.balances[ownerID]
	if !ok {
		return decimal.Zero, ErrNoWallet
	}
	s.balances[ownerID] = current.Add(amount)
	slog.InfoContext(ctx, "balance refunded", "owner_id", ownerID, "amount", amount.String())
	return s.balances[ownerID], nil
}
