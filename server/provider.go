package server

import (
	"context"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *logging.Service `optional:"true"`
}

// ProvideServer builds the server and ties listening to the fx lifecycle. Routes must be
// registered by invokes that run before OnStart.
func ProvideServer(p Params) *Server {
	srv := New(p.Config, p.Logger)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return srv
}

var Module = fx.Options(
	fx.Provide(ProvideServer),
)
