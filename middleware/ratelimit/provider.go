package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func NewStore(cfg *config.RateLimitConfig, db *gorm.DB) (Store, error) {
	switch cfg.Store {
	case "database":
		if db == nil {
			return nil, fmt.Errorf("database rate limit store requires a database connection")
		}
		return NewDatabaseStore(db), nil
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", cfg.Store)
	}
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	DB        *gorm.DB         `optional:"true"`
	Logger    *logging.Service `optional:"true"`
}

func ProvideRateLimitStore(p Params) (Store, error) {
	store, err := NewStore(&p.Config.RateLimit, p.DB)
	if err != nil {
		return nil, err
	}

	period := p.Config.RateLimit.CleanupPeriod
	if period <= 0 {
		period = time.Hour
	}

	worker := &cleanupWorker{store: store, interval: period, logger: p.Logger}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			worker.start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return worker.stop(ctx)
		},
	})

	return store, nil
}

type cleanupWorker struct {
	store    Store
	interval time.Duration
	logger   *logging.Service
	cancel   context.CancelFunc
	done     chan struct{}
}

func (w *cleanupWorker) start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := w.store.Cleanup(ctx)
				if err != nil {
					w.logger.Warn("rate limit cleanup failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					w.logger.Debug("rate limit cleanup completed", zap.Int64("removed", removed))
				}
			}
		}
	}()
}

func (w *cleanupWorker) stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)
