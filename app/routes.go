package app

import (
	"github.com/driplo/twofa/config"
	authhandlers "github.com/driplo/twofa/handlers/auth"
	twofactorhandlers "github.com/driplo/twofa/handlers/twofactor"
	"github.com/driplo/twofa/middleware/csrf"
	"github.com/driplo/twofa/middleware/ratelimit"
	"github.com/driplo/twofa/middleware/twofactor"
	"github.com/driplo/twofa/openapi"
	"github.com/driplo/twofa/server"
	"github.com/driplo/twofa/services/logging"
	"github.com/driplo/twofa/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type routeParams struct {
	fx.In

	Config    *config.Config
	Logger    *logging.Service
	Sessions  *session.Manager
	Gate      *twofactor.Gate
	Limits    ratelimit.Store
	Auth      *authhandlers.Handler
	TwoFactor *twofactorhandlers.Handler
	Docs      *openapi.Document `optional:"true"`
	// Server comes last so its stop hook runs before the database closes.
	Server *server.Server
}

// registerRoutes installs the middleware chain in order: request log, CSRF, session, two-factor gate.
func (b *AppBuilder) registerRoutes(p routeParams) {
	p.Server.Use(
		logging.RequestLogger(p.Logger, session.GetUserIDAsUint),
		csrf.Middleware(&p.Config.CSRF),
		session.Middleware(p.Sessions),
		p.Gate.Middleware(),
	)

	p.Auth.Register(p.Server.Echo(), limiter(p, "login")...)
	p.TwoFactor.Register(p.Server.Echo(), limiter(p, "2fa")...)

	if p.Docs != nil {
		p.Docs.Register(p.Server.Echo())
	}

	for _, fn := range b.routes {
		fn(p.Server.Echo())
	}
}

func limiter(p routeParams, scope string) []echo.MiddlewareFunc {
	cfg := p.Config.RateLimit
	if !cfg.Enabled {
		return nil
	}
	return []echo.MiddlewareFunc{
		ratelimit.Middleware(&ratelimit.Config{
			Store:        p.Limits,
			Rate:         cfg.Rate,
			Period:       cfg.Period,
			CountMode:    cfg.CountMode,
			KeyGenerator: ratelimit.IdentityKeyGenerator(scope, session.Identity),
			Logger:       p.Logger,
		}),
	}
}
