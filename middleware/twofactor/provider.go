package twofactor

import (
	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/logging"
	"github.com/driplo/twofa/services/marker"
	"github.com/driplo/twofa/session"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config     *config.Config
	Enrollment *enrollment.Service
	Markers    *marker.Service
	Logger     *logging.Service `optional:"true"`
}

func ProvideGate(p Params) *Gate {
	return New(Config{
		TwoFactor:  &p.Config.TwoFactor,
		Enrollment: p.Enrollment,
		Markers:    p.Markers,
		Identity:   session.Identity,
		Logger:     p.Logger,
	})
}

var Module = fx.Options(
	fx.Provide(ProvideGate),
)
