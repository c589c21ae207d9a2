package options

import (
	"github.com/driplo/twofa/config"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type Options struct {
	Config    *config.Config
	Models    []any
	Routes    []func(*echo.Echo)
	FxOptions []fx.Option
}

type Option func(*Options)

func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

func WithModels(models ...any) Option {
	return func(opts *Options) {
		opts.Models = append(opts.Models, models...)
	}
}

func WithRoutes(fn func(*echo.Echo)) Option {
	return func(opts *Options) {
		opts.Routes = append(opts.Routes, fn)
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.FxOptions = append(opts.FxOptions, fxOpts...)
	}
}

func Apply(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
