// internal/server/resolver.go
package server

import (
	"os"
	"time"

	"macro-pipeline/internal/lookup"
)

// resolverConfigFromEnv builds the lookup client configuration from the
// environment. An empty NUTRITION_RESOLVER_URL disables the service tier and
// resolution starts at the cache.
func resolverConfigFromEnv() lookup.Config {
	cfg := lookup.Config{
		ServiceURL: os.Getenv("NUTRITION_RESOLVER_URL"),
	}

	if v := os.Getenv("NUTRITION_RESOLVER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ServiceTimeout = d
		}
	}
	if v := os.Getenv("NUTRITION_CACHE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CacheTimeout = d
		}
	}

	return cfg
}
