// Package collaborators holds the HTTP clients for the product, inventory
// and wallet services. Calls are single round trips bounded by a timeout and
// never retried here; callers decide what an unknown outcome means.
package collaborators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jcmexdev/order-saga/internal/order-service/ports"
	"github.com/jcmexdev/order-saga/internal/pkg/interceptors/constants"
	"github.com/jcmexdev/order-saga/internal/pkg/metrics"
)

type Config struct {
	ProductURL   string
	InventoryURL string
	WalletURL    string
	Timeout      time.Duration
}

type base struct {
	name    string
	rest    *resty.Client
	metrics *metrics.Metrics
}

func newBase(name, baseURL string, timeout time.Duration, m *metrics.Metrics) base {
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	rest.OnBeforeRequest(propagateContext)
	return base{name: name, rest: rest, metrics: m}
}

// propagateContext forwards the trace context and the inbound request id.
func propagateContext(_ *resty.Client, r *resty.Request) error {
	ctx := r.Context()
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(r.Header))
	if id := middleware.GetReqID(ctx); id != "" {
		r.Header.Set(constants.HeaderXRequestId, id)
	}
	return nil
}

func (b base) request(ctx context.Context) *resty.Request {
	return b.rest.R().SetContext(ctx)
}

func (b base) observe(operation string, start time.Time, err error) {
	b.metrics.ObserveRemoteCall(b.name, operation, time.Since(start), err)
}

// classify maps a round trip onto ErrUnavailable (no usable answer) or
// ErrRejected (the collaborator said no). A connection that could not be
// opened also carries ErrNotSent.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return fmt.Errorf("%w: %w: %v", ports.ErrUnavailable, ports.ErrNotSent, err)
		}
		return fmt.Errorf("%w: %v", ports.ErrUnavailable, err)
	}
	code := resp.StatusCode()
	switch {
	case resp.IsSuccess():
		return nil
	case code >= 500:
		return fmt.Errorf("%w: status %d", ports.ErrUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d: %s", ports.ErrRejected, code, strings.TrimSpace(resp.String()))
	}
}

// Amounts go out as JSON numbers, not the quoted strings decimal emits.
func number(s fmt.Stringer) json.Number {
	return json.Number(s.String())
}
