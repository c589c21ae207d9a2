package app

import (
	"errors"
	"fmt"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/database"
	authhandlers "github.com/driplo/twofa/handlers/auth"
	twofactorhandlers "github.com/driplo/twofa/handlers/twofactor"
	"github.com/driplo/twofa/middleware/ratelimit"
	"github.com/driplo/twofa/middleware/twofactor"
	"github.com/driplo/twofa/openapi"
	"github.com/driplo/twofa/server"
	"github.com/driplo/twofa/services/audit"
	"github.com/driplo/twofa/services/auth"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/logging"
	"github.com/driplo/twofa/services/mail"
	"github.com/driplo/twofa/services/marker"
	"github.com/driplo/twofa/services/totp"
	"github.com/driplo/twofa/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

type AppBuilder struct {
	config    *config.Config
	models    []any
	routes    []func(*echo.Echo)
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithModels migrates application models alongside the service's own tables.
func (b *AppBuilder) WithModels(models ...any) *AppBuilder {
	b.models = append(b.models, models...)
	return b
}

// WithRoutes registers application routes behind the session and two-factor middleware.
func (b *AppBuilder) WithRoutes(fn func(*echo.Echo)) *AppBuilder {
	if fn == nil {
		b.addError("routes function cannot be nil")
		return b
	}
	b.routes = append(b.routes, fn)
	return b
}

func (b *AppBuilder) WithSSL(certFile, keyFile string) *AppBuilder {
	if certFile == "" || keyFile == "" {
		b.addError("SSL cert file and key file cannot be empty")
		return b
	}
	if b.config == nil {
		b.addError("SSL requires a config, call WithConfig first")
		return b
	}
	b.config.Server.TLSCertFile = certFile
	b.config.Server.TLSKeyFile = keyFile
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	app := &App{config: b.config}

	options := append(b.buildFxOptions(),
		fx.Populate(&app.logger, &app.db, &app.server),
	)
	app.fx = fx.New(options...)

	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(b.errors...))
	}
	return nil
}

// coreModels are the tables every deployment needs.
func coreModels() []any {
	return []any{
		&auth.User{},
		&enrollment.Enrollment{},
		&totp.UsedCode{},
		&audit.AuthEvent{},
		&ratelimit.RateLimitEntry{},
	}
}

func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		config.NewProvider(b.config),
		fx.Supply(database.WithModels(coreModels()...).Append(b.models...)),
		fx.WithLogger(func(logger *logging.Service) fxevent.Logger {
			zl := &fxevent.ZapLogger{Logger: logger.Logger()}
			zl.UseLogLevel(zapcore.DebugLevel)
			return zl
		}),

		logging.Module,
		database.Module,
		session.Module,
		server.Module,
		openapi.Module,

		auth.Module,
		totp.Module,
		enrollment.Module,
		marker.Module,
		audit.Module,
		mail.Module,

		ratelimit.Module,
		twofactor.Module,
		authhandlers.Module,
		twofactorhandlers.Module,

		fx.Invoke(b.registerRoutes),
	}

	return append(options, b.fxOptions...)
}
