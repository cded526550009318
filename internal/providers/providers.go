// Package providers initializes and registers the concrete rate
// providers with a provider registry.
package providers

import (
	"github.com/seenimoa/fxstream/internal/config"
	"github.com/seenimoa/fxstream/internal/provider"
	"github.com/seenimoa/fxstream/internal/providers/frankfurter"
)

// RegisterAll creates a registry holding every available provider,
// honoring the configured base URL override.
func RegisterAll(cfg *config.Config) *provider.Registry {
	reg := provider.NewRegistry()

	// --- Frankfurter (free, no API key) ---
	if cfg.Upstream.BaseURL != "" {
		reg.Register(frankfurter.NewWithBaseURL(cfg.Upstream.BaseURL))
	} else {
		reg.Register(frankfurter.New())
	}

	return reg
}
