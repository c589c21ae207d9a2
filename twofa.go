// Package twofa serves TOTP two-factor enrollment and verification behind a session-aware request gate.
package twofa

import (
	"github.com/driplo/twofa/app"
	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/internal/options"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type App = app.App

// New builds the application. Without WithConfig the configuration is loaded from the environment.
func New(opts ...options.Option) (*App, error) {
	o := options.Apply(opts...)

	builder := app.NewApp()
	if o.Config != nil {
		builder.WithConfig(o.Config)
	}
	builder.WithModels(o.Models...).WithFxOptions(o.FxOptions...)
	for _, fn := range o.Routes {
		builder.WithRoutes(fn)
	}

	return builder.Build()
}

func WithConfig(cfg *config.Config) options.Option {
	return options.WithConfig(cfg)
}

func WithModels(models ...any) options.Option {
	return options.WithModels(models...)
}

// WithRoutes registers application routes. They sit behind the session and two-factor middleware.
func WithRoutes(fn func(*echo.Echo)) options.Option {
	return options.WithRoutes(fn)
}

func WithFxOptions(fxOpts ...fx.Option) options.Option {
	return options.WithFxOptions(fxOpts...)
}
