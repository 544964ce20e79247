package collaborators

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jcmexdev/order-saga/internal/order-service/ports"
	"github.com/jcmexdev/order-saga/internal/pkg/metrics"
)

const (
	inventoryItemPath    = "/api/inventory/product/{productId}"
	inventoryReducePath  = "/api/inventory/reduce"
	inventoryReleasePath = "/api/inventory/release"
)

type inventoryItemDTO struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type quantityRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type InventoryClient struct {
	base
}

var _ ports.InventoryClient = (*InventoryClient)(nil)

func NewInventoryClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *InventoryClient {
	return &InventoryClient{base: newBase("inventory", baseURL, timeout, m)}
}

func (c *InventoryClient) Quantity(ctx context.Context, productID string) (qty int, ok bool, err error) {
	defer func(start time.Time) { c.observe("quantity", start, err) }(time.Now())

	var out inventoryItemDTO
	resp, err := c.request(ctx).
		SetPathParam("productId", productID).
		SetResult(&out).
		Get(inventoryItemPath)
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return 0, false, nil
	}
	if err := classify(resp, err); err != nil {
		return 0, false, fmt.Errorf("inventory of %s: %w", productID, err)
	}
	if out.Quantity == nil {
		return 0, false, nil
	}
	return *out.Quantity, true, nil
}

func (c *InventoryClient) Reserve(ctx context.Context, productID string, quantity int) (err error) {
	defer func(start time.Time) { c.observe("reserve", start, err) }(time.Now())
	return c.put(ctx, inventoryReducePath, productID, quantity)
}

func (c *InventoryClient) Release(ctx context.Context, productID string, quantity int) (err error) {
	defer func(start time.Time) { c.observe("release", start, err) }(time.Now())
	return c.put(ctx, inventoryReleasePath, productID, quantity)
}

func (c *InventoryClient) put(ctx context.Context, path, productID string, quantity int) error {
	resp, err := c.request(ctx).
		SetBody(quantityRequest{ProductID: productID, Quantity: quantity}).
		Put(path)
	if err := classify(resp, err); err != nil {
		return fmt.Errorf("%s %s x%d: %w", path, productID, quantity, err)
	}
	return nil
}
