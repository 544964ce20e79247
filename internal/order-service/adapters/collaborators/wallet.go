package collaborators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/order-saga/internal/order-service/ports"
	"github.com/jcmexdev/order-saga/internal/pkg/metrics"
)

const (
	walletBalancePath = "/api/transaction/balance"
	walletDeductPath  = "/api/transaction/deduct-balance"
	walletRefundPath  = "/api/transaction/refund-balance"
)

type balanceDTO struct {
	Balance *decimal.Decimal `json:"balance"`
}

type amountRequest struct {
	Amount json.Number `json:"amount"`
}

// WalletClient forwards the caller's credential as a bearer token on every
// call; it never acts on a wallet other than the caller's.
type WalletClient struct {
	base
}

var _ ports.WalletClient = (*WalletClient)(nil)

func NewWalletClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *WalletClient {
	return &WalletClient{base: newBase("wallet", baseURL, timeout, m)}
}

func (c *WalletClient) Balance(ctx context.Context, credential string) (balance decimal.Decimal, ok bool, err error) {
	defer func(start time.Time) { c.observe("balance", start, err) }(time.Now())

	var out balanceDTO
	resp, err := c.request(ctx).
		SetAuthToken(credential).
		SetResult(&out).
		Get(walletBalancePath)
	if err == nil && (resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusNoContent) {
		return decimal.Zero, false, nil
	}
	if err := classify(resp, err); err != nil {
		return decimal.Zero, false, fmt.Errorf("wallet balance: %w", err)
	}
	if out.Balance == nil {
		return decimal.Zero, false, nil
	}
	return *out.Balance, true, nil
}

func (c *WalletClient) Deduct(ctx context.Context, credential string, amount decimal.Decimal) (err error) {
	defer func(start time.Time) { c.observe("deduct", start, err) }(time.Now())
	return c.put(ctx, walletDeductPath, credential, amount)
}

func (c *WalletClient) Refund(ctx context.Context, credential string, amount decimal.Decimal) (err error) {
	defer func(start time.Time) { c.observe("refund", start, err) }(time.Now())
	return c.put(ctx, walletRefundPath, credential, amount)
}

func (c *WalletClient) put(ctx context.Context, path, credential string, amount decimal.Decimal) error {
	resp, err := c.request(ctx).
		SetAuthToken(credential).
		SetBody(amountRequest{Amount: number(amount)}).
		Put(path)
	if err := classify(resp, err); err != nil {
		return fmt.Errorf("%s %s: %w", path, amount, err)
	}
	return nil
}
