package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/order-service/ports"
)

// Memory keeps orders in a map. Orders are copied on the way in and out so
// callers never share state with the store.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	now    func() time.Time
}

var _ ports.OrderStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		orders: make(map[string]*domain.Order),
		now:    time.Now,
	}
}

func (s *Memory) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return ErrDuplicate
	}
	s.orders[order.ID] = clone(order)
	return nil
}

func (s *Memory) Get(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(order), nil
}

func (s *Memory) ListByOwner(_ context.Context, ownerID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, o := range s.orders {
		if o.OwnerID == ownerID {
			out = append(out, clone(o))
		}
	}
	sortOrders(out)
	return out, nil
}

func (s *Memory) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return domain.ErrNotFound
	}
	order.Status = to
	order.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func clone(o *domain.Order) *domain.Order {
	c := *o
	c.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &c
}

// sortOrders orders by creation time, oldest first, with the id as tie breaker.
func sortOrders(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
