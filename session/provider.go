package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Manager struct {
	*scs.SessionManager
	config config.SessionConfig
}

func NewManager(cfg *config.Config, store scs.Store) *Manager {
	sessionManager := scs.New()
	sessionManager.Store = store
	sessionManager.Lifetime = cfg.Session.MaxAge
	sessionManager.IdleTimeout = cfg.Session.MaxAge
	sessionManager.Cookie.Name = cfg.Session.Name
	sessionManager.Cookie.Path = cfg.Session.Path
	sessionManager.Cookie.Domain = cfg.Session.Domain
	sessionManager.Cookie.Secure = cfg.Session.Secure
	sessionManager.Cookie.HttpOnly = cfg.Session.HttpOnly
	sessionManager.Cookie.SameSite = MapSameSite(cfg.Session.SameSite)

	return &Manager{
		SessionManager: sessionManager,
		config:         cfg.Session,
	}
}

func MapSameSite(value string) http.SameSite {
	switch value {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	DB        *gorm.DB         `optional:"true"`
	Logger    *logging.Service `optional:"true"`
}

func ProvideSessionManager(p Params) (*Manager, error) {
	var store scs.Store

	switch p.Config.Session.Store {
	case "memory":
		store = NewMemoryStore()
	case "database":
		if p.DB == nil {
			return nil, fmt.Errorf("database session store requires a database connection")
		}
		dbStore, err := NewDatabaseStore(p.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to create database session store: %w", err)
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				dbStore.StopCleanup()
				return nil
			},
		})
		store = dbStore
	default:
		return nil, fmt.Errorf("unsupported session store: %s", p.Config.Session.Store)
	}

	if p.Logger != nil {
		p.Logger.Info("session manager configured",
			zap.String("store", p.Config.Session.Store),
			zap.String("cookie", p.Config.Session.Name),
			zap.Duration("max_age", p.Config.Session.MaxAge))
	}

	return NewManager(p.Config, store), nil
}

var Module = fx.Module("session",
	fx.Provide(ProvideSessionManager),
)
