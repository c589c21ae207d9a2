package auth

import (
	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/openapi"
	"github.com/driplo/twofa/services/audit"
	userauth "github.com/driplo/twofa/services/auth"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/logging"
	"github.com/driplo/twofa/services/marker"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config     *config.Config
	Users      *userauth.Service
	Enrollment *enrollment.Service
	Markers    *marker.Service
	Audit      *audit.Service
	Docs       *openapi.Document `optional:"true"`
	Logger     *logging.Service  `optional:"true"`
}

func ProvideHandler(p Params) *Handler {
	return NewHandler(Deps{
		Config:     p.Config,
		Users:      p.Users,
		Enrollment: p.Enrollment,
		Markers:    p.Markers,
		Audit:      p.Audit,
		Docs:       p.Docs,
		Logger:     p.Logger,
	})
}

var Module = fx.Options(
	fx.Provide(ProvideHandler),
)
