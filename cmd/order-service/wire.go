package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jcmexdev/order-saga/internal/coordinator"
	"github.com/jcmexdev/order-saga/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/order-saga/internal/order-service/adapters/collaborators"
	"github.com/jcmexdev/order-saga/internal/order-service/adapters/store"
	"github.com/jcmexdev/order-saga/internal/order-service/app"
	"github.com/jcmexdev/order-saga/internal/order-service/ports"
	"github.com/jcmexdev/order-saga/internal/pkg/cache"
	"github.com/jcmexdev/order-saga/internal/pkg/config"
	"github.com/jcmexdev/order-saga/internal/pkg/metrics"
)

// components is everything serve and recover share.
type components struct {
	orchestrator *app.Orchestrator
	registry     *prometheus.Registry
	closers      []func() error
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg *config.Config) (_ *components, err error) {
	c := &components{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(c.registry)

	orders, err := openStore(ctx, cfg, c)
	if err != nil {
		return nil, err
	}

	var journal *coordinator.Journal
	if cfg.SagaLog.Path != "" {
		repo, err := sqlite.Open(cfg.SagaLog.Path)
		if err != nil {
			return nil, fmt.Errorf("open saga log: %w", err)
		}
		c.closers = append(c.closers, repo.Close)
		journal = coordinator.NewJournal(repo)
	} else {
		slog.Warn("saga log disabled; interrupted sagas cannot be recovered")
	}

	var idem *cache.Idempotency
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.RedisAddr, "order")
		c.closers = append(c.closers, rc.Close)
		if err := rc.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		idem = cache.NewIdempotency(rc, cfg.IdempotencyTTL)
	}

	c.orchestrator = app.NewOrchestrator(app.Deps{
		Products:    collaborators.NewProductClient(cfg.ProductURL, cfg.RemoteTimeout, m),
		Inventory:   collaborators.NewInventoryClient(cfg.InventoryURL, cfg.RemoteTimeout, m),
		Wallet:      collaborators.NewWalletClient(cfg.WalletURL, cfg.RemoteTimeout, m),
		Store:       orders,
		Journal:     journal,
		Metrics:     m,
		Idempotency: idem,
	}, app.Options{
		Retry: coordinator.RetryPolicy{
			MaxTries:        cfg.Compensation.MaxTries,
			InitialInterval: cfg.Compensation.InitialInterval,
			MaxInterval:     cfg.Compensation.MaxInterval,
		},
		DeleteOnCancel: cfg.Cancel.Delete,
	})
	return c, nil
}

func openStore(ctx context.Context, cfg *config.Config, c *components) (ports.OrderStore, error) {
	if cfg.Store.Driver == store.DriverMemory {
		return store.NewMemory(), nil
	}
	s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, s.Close)
	return s, nil
}
