// Package app is the in-memory product catalog and stock table behind the
// inventory dev service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-saga/internal/inventory-service/domain"
)

type Catalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
	stock    map[string]int
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]domain.Product),
		stock:    make(map[string]int),
	}
}

// NewSeededCatalog returns a catalog with a few products for local runs.
func NewSeededCatalog() *Catalog {
	c := NewCatalog()
	c.Put(domain.Product{ID: "prod_1", Name: "Mechanical keyboard", Price: price("89.90")}, 15)
	c.Put(domain.Product{ID: "prod_2", Name: "USB-C cable", Price: price("9.99")}, 10)
	c.Put(domain.Product{ID: "prod_3", Name: "Monitor arm", Price: price("45.50")}, 0)
	c.Put(domain.Product{ID: "prod_4", Name: "Prototype dock"}, 3)
	return c
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// Put creates or replaces a product and sets its stock.
func (c *Catalog) Put(p domain.Product, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
	c.stock[p.ID] = quantity
}

func (c *Catalog) Product(_ context.Context, id string) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrUnknownProduct
	}
	return p, nil
}

func (c *Catalog) Products(_ context.Context) []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Stock(_ context.Context, productID string) (domain.StockItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.stock[productID]
	if !ok {
		return domain.StockItem{}, domain.ErrUnknownProduct
	}
	return domain.StockItem{ProductID: productID, Quantity: q}, nil
}

// Reduce checks and decrements under one lock so concurrent orders cannot
// oversell.
func (c *Catalog) Reduce(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.stock[productID]
	if !ok {
		return domain.ErrUnknownProduct
	}
	if current < quantity {
		slog.InfoContext(ctx, "insufficient stock", "product_id", productID, "available", current, "requested", quantity)
		return fmt.Errorf("%w for product %s, available %d", domain.ErrInsufficientStock, productID, current)
	}
	c.stock[productID] = current - quantity
	slog.InfoContext(ctx, "stock reduced", "product_id", productID, "quantity", quantity, "remaining", c.stock[productID])
	return nil
}

func (c *Catalog) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.stock[productID]; !ok {
		return domain.ErrUnknownProduct
	}
	c.stock[productID] += quantity
	slog.InfoContext(ctx, "stock released", "product_id", productID, "quantity", quantity, "remaining", c.stock[productID])
	return nil
}
