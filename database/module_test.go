package database

import (
	"context"
	"testing"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"gorm.io/gorm"
)

func TestModule(t *testing.T) {
	t.Run("provides a migrated database", func(t *testing.T) {
		var db *gorm.DB

		app := fxtest.New(t,
			Module,
			fx.Provide(func() *config.Config {
				cfg := createTestConfig("sqlite", ":memory:", true)
				return &cfg
			}),
			fx.Provide(newTestLogger),
			fx.Supply(WithModels(&TestModel{})),
			fx.Populate(&db),
		)
		app.RequireStart()

		require.NotNil(t, db)
		assert.True(t, db.Migrator().HasTable(&TestModel{}))

		app.RequireStop()

		sqlDB, err := db.DB()
		require.NoError(t, err)
		assert.Error(t, sqlDB.PingContext(context.Background()))
	})

	t.Run("optional dependencies may be absent", func(t *testing.T) {
		app := fx.New(
			Module,
			fx.Provide(func() *config.Config {
				cfg := createTestConfig("sqlite", ":memory:", false)
				return &cfg
			}),
			fx.NopLogger,
			fx.Invoke(func(db *gorm.DB) {
				assert.NotNil(t, db)
			}),
		)

		assert.NoError(t, app.Err())
	})

	t.Run("provider error surfaces", func(t *testing.T) {
		app := fx.New(
			Module,
			fx.Provide(func() *config.Config {
				cfg := createTestConfig("unsupported", "dsn", false)
				return &cfg
			}),
			fx.Provide(func() *logging.Service { return nil }),
			fx.NopLogger,
			fx.Invoke(func(db *gorm.DB) {}),
		)

		assert.Error(t, app.Err())
	})
}
