package openapi

import (
	"github.com/driplo/twofa/config"
	"go.uber.org/fx"
)

// ProvideDocument returns nil when the API description is disabled.
func ProvideDocument(cfg *config.Config) *Document {
	if !cfg.OpenAPI.Enabled {
		return nil
	}
	return New(cfg.OpenAPI.Title, cfg.OpenAPI.Version).
		Description("Two-factor enrollment, verification and session endpoints").
		SessionCookie(cfg.Session.Name)
}

var Module = fx.Options(
	fx.Provide(ProvideDocument),
)
