package collaborators

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-saga/internal/order-service/ports"
	"github.com/jcmexdev/order-saga/internal/pkg/metrics"
)

const productPath = "/api/product/{id}"

type productDTO struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

type ProductClient struct {
	base
}

var _ ports.ProductClient = (*ProductClient)(nil)

func NewProductClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *ProductClient {
	return &ProductClient{base: newBase("product", baseURL, timeout, m)}
}

func (c *ProductClient) Exists(ctx context.Context, productID string) (exists bool, err error) {
	defer func(start time.Time) { c.observe("exists", start, err) }(time.Now())

	_, found, err := c.fetch(ctx, productID)
	return found, err
}

func (c *ProductClient) Price(ctx context.Context, productID string) (price decimal.Decimal, ok bool, err error) {
	defer func(start time.Time) { c.observe("price", start, err) }(time.Now())

	p, found, err := c.fetch(ctx, productID)
	if err != nil || !found || p.Price == nil || p.Price.IsNegative() {
		return decimal.Zero, false, err
	}
	return *p.Price, true, nil
}

func (c *ProductClient) fetch(ctx context.Context, productID string) (*productDTO, bool, error) {
	var out productDTO
	resp, err := c.request(ctx).
		SetPathParam("id", productID).
		SetResult(&out).
		Get(productPath)
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil, false, nil
	}
	if err := classify(resp, err); err != nil {
		return nil, false, fmt.Errorf("product %s: %w", productID, err)
	}
	return &out, true, nil
}
