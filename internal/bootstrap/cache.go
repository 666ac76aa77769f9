package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/cache"
	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/services"
)

// initializeConfigCache selects the config-payload cache backend. Memory
// serves a single instance; rueidis shares the cache across instances.
func initializeConfigCache(cfg *config.Config) (cache.Cache[services.ConfigPayload], error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRueidis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c, err := cache.NewRueidisCache[services.ConfigPayload](
			ctx, cfg.CacheRedisAddr, "", 0, "config:",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis config cache: %w", err)
		}
		log.Printf("[Bootstrap] Config cache backend: rueidis addr=%s", cfg.CacheRedisAddr)
		return c, nil
	default:
		log.Printf("[Bootstrap] Config cache backend: memory")
		return cache.NewMemoryCache[services.ConfigPayload](), nil
	}
}
