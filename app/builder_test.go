package app

import (
	"testing"

	"github.com/driplo/twofa/middleware/ratelimit"
	"github.com/driplo/twofa/services/audit"
	"github.com/driplo/twofa/services/auth"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/totp"
	"github.com/driplo/twofa/testutils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

type Widget struct {
	ID   uint
	Name string
}

func TestNewApp(t *testing.T) {
	builder := NewApp()

	assert.NotNil(t, builder)
	assert.Nil(t, builder.config)
	assert.Empty(t, builder.models)
	assert.Empty(t, builder.routes)
	assert.Empty(t, builder.fxOptions)
	assert.Empty(t, builder.errors)
}

func TestAppBuilder_WithConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		builder := NewApp()
		cfg := testutils.GetTestConfig()

		result := builder.WithConfig(cfg)

		assert.Equal(t, builder, result)
		assert.Equal(t, cfg, builder.config)
		assert.Empty(t, builder.errors)
	})

	t.Run("nil config", func(t *testing.T) {
		builder := NewApp().WithConfig(nil)

		assert.Len(t, builder.errors, 1)
		assert.Contains(t, builder.errors[0].Error(), "config cannot be nil")
	})
}

func TestAppBuilder_WithModels(t *testing.T) {
	builder := NewApp()

	result := builder.WithModels(&Widget{})

	assert.Equal(t, builder, result)
	assert.Len(t, builder.models, 1)
}

func TestAppBuilder_WithRoutes(t *testing.T) {
	t.Run("adds routes", func(t *testing.T) {
		builder := NewApp().WithRoutes(func(*echo.Echo) {})
		assert.Len(t, builder.routes, 1)
	})

	t.Run("nil routes", func(t *testing.T) {
		builder := NewApp().WithRoutes(nil)
		assert.Len(t, builder.errors, 1)
	})
}

func TestAppBuilder_WithSSL(t *testing.T) {
	t.Run("valid files", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		builder := NewApp().WithConfig(cfg).WithSSL("cert.pem", "key.pem")

		assert.Empty(t, builder.errors)
		assert.Equal(t, "cert.pem", cfg.Server.TLSCertFile)
		assert.Equal(t, "key.pem", cfg.Server.TLSKeyFile)
	})

	t.Run("empty files", func(t *testing.T) {
		builder := NewApp().WithConfig(testutils.GetTestConfig()).WithSSL("", "key.pem")

		assert.Len(t, builder.errors, 1)
		assert.Contains(t, builder.errors[0].Error(), "cannot be empty")
	})

	t.Run("before config", func(t *testing.T) {
		builder := NewApp().WithSSL("cert.pem", "key.pem")

		assert.Len(t, builder.errors, 1)
		assert.Contains(t, builder.errors[0].Error(), "WithConfig first")
	})
}

func TestAppBuilder_WithFxOptions(t *testing.T) {
	builder := NewApp()

	result := builder.WithFxOptions(fx.Invoke(func() {}), fx.Invoke(func() {}))

	assert.Equal(t, builder, result)
	assert.Len(t, builder.fxOptions, 2)
}

func TestAppBuilder_Build(t *testing.T) {
	t.Run("wires every service", func(t *testing.T) {
		app, err := NewApp().
			WithConfig(testutils.GetTestConfig()).
			WithModels(&Widget{}).
			Build()

		require.NoError(t, err)
		require.NotNil(t, app)
		assert.NotNil(t, app.Logger())
		assert.NotNil(t, app.Server())
		require.NotNil(t, app.Database())

		migrator := app.Database().Migrator()
		for _, model := range append(coreModels(), &Widget{}) {
			assert.True(t, migrator.HasTable(model), "%T", model)
		}
	})

	t.Run("builder errors", func(t *testing.T) {
		app, err := NewApp().WithConfig(nil).Build()

		assert.Nil(t, app)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration errors")
	})

	t.Run("provider errors", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.Session.Store = "redis"

		app, err := NewApp().WithConfig(cfg).Build()

		assert.Nil(t, app)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported session store")
	})
}

func TestCoreModels(t *testing.T) {
	models := coreModels()

	assert.Contains(t, models, &auth.User{})
	assert.Contains(t, models, &enrollment.Enrollment{})
	assert.Contains(t, models, &totp.UsedCode{})
	assert.Contains(t, models, &audit.AuthEvent{})
	assert.Contains(t, models, &ratelimit.RateLimitEntry{})
}
