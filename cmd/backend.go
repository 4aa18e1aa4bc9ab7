package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/costing-cli/internal/config"
	"github.com/sells-group/costing-cli/internal/editor"
	"github.com/sells-group/costing-cli/internal/resilience"
	"github.com/sells-group/costing-cli/internal/store"
	"github.com/sells-group/costing-cli/pkg/kitchen"
)

// backend is what the editor, the cost command and the HTTP API need from a
// recipe source. store.Store and *kitchen.Client both satisfy it.
type backend interface {
	editor.Backend
	editor.PortionsSaver
}

// initStore opens the local database named by the config. The kitchen
// driver has no local database.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		// Local files are created on first use.
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	case "kitchen":
		return nil, eris.New("this command needs a local store (store.driver sqlite or postgres)")
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initBackend opens the configured recipe source. The returned close
// function is never nil.
func initBackend(ctx context.Context) (backend, func(), error) {
	if cfg.Store.Driver == "kitchen" {
		return newKitchenClient(cfg.Kitchen), func() {}, nil
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {
		if err := st.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}, nil
}

func newKitchenClient(kc config.KitchenConfig) *kitchen.Client {
	retry := resilience.FromMillis(kc.MaxAttempts, kc.InitialBackoffMs, kc.MaxBackoffMs)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: kc.BreakerThreshold,
		ResetTimeout:     time.Duration(kc.BreakerResetSecs) * time.Second,
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("kitchen circuit state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	opts := []kitchen.Option{
		kitchen.WithRetry(retry),
		kitchen.WithCircuitBreaker(breaker),
		kitchen.WithRateLimit(kc.RateLimit, kc.RateBurst),
	}
	if kc.TimeoutSecs > 0 {
		opts = append(opts, kitchen.WithHTTPClient(&http.Client{
			Timeout: time.Duration(kc.TimeoutSecs) * time.Second,
		}))
	}
	return kitchen.NewClient(kc.BaseURL, kc.Key, opts...)
}
