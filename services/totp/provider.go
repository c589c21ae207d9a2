package totp

import (
	"context"
	"time"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const cleanupInterval = 5 * time.Minute

func NewProvider(lc fx.Lifecycle, cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	service := NewService(cfg, db, logger)

	if cfg.TOTP.ReplayProtection {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					ticker := time.NewTicker(cleanupInterval)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return
						case <-ticker.C:
							_, _ = service.CleanupUsedCodes(ctx)
						}
					}
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				select {
				case <-done:
				case <-stopCtx.Done():
				}
				return nil
			},
		})
	}

	return service
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)
