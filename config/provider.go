package config

import (
	"fmt"

	"go.uber.org/fx"
)

// NewProvider supplies cfg as-is when non-nil. Otherwise the config is loaded from the
// environment and any validation error aborts the fx graph.
func NewProvider(cfg *Config) fx.Option {
	if cfg != nil {
		return fx.Supply(cfg)
	}

	return fx.Provide(func() (*Config, error) {
		loaded := &Config{}
		if err := LoadConfig(loaded); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return loaded, nil
	})
}
