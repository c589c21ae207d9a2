package twofactor

import (
	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/openapi"
	"github.com/driplo/twofa/services/audit"
	"github.com/driplo/twofa/services/auth"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/logging"
	"github.com/driplo/twofa/services/mail"
	"github.com/driplo/twofa/services/marker"
	"github.com/driplo/twofa/services/totp"
	"github.com/driplo/twofa/session"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config     *config.Config
	Enrollment *enrollment.Service
	TOTP       *totp.Service
	Markers    *marker.Service
	Users      *auth.Service
	Audit      *audit.Service
	Mail       *mail.Service
	Docs       *openapi.Document `optional:"true"`
	Logger     *logging.Service  `optional:"true"`
}

func ProvideHandler(p Params) *Handler {
	return NewHandler(Deps{
		Config:     p.Config,
		Enrollment: p.Enrollment,
		TOTP:       p.TOTP,
		Markers:    p.Markers,
		Users:      p.Users,
		Audit:      p.Audit,
		Notifier:   p.Mail,
		Identity:   session.Identity,
		Docs:       p.Docs,
		Logger:     p.Logger,
	})
}

var Module = fx.Options(
	fx.Provide(ProvideHandler),
)
