package bootstrap

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/middleware"
)

// rateLimitMiddlewares holds the per-route-group limiters
type rateLimitMiddlewares struct {
	Register   gin.HandlerFunc
	DeviceCode gin.HandlerFunc
	Token      gin.HandlerFunc
	Login      gin.HandlerFunc
	Claim      gin.HandlerFunc
}

// setupRateLimiting creates the per-route rate limiters. The token
// limiter is validated at config load to admit at least the advertised
// poll cadence.
func setupRateLimiting(cfg *config.Config) rateLimitMiddlewares {
	if !cfg.EnableRateLimit {
		passthrough := func(c *gin.Context) { c.Next() }
		return rateLimitMiddlewares{
			Register:   passthrough,
			DeviceCode: passthrough,
			Token:      passthrough,
			Login:      passthrough,
			Claim:      passthrough,
		}
	}

	newLimiter := func(rpm int) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: rpm,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
			StoreType:         middleware.RateLimitStoreType(cfg.RateLimitStore),
			RedisAddr:         cfg.RateLimitRedisAddr,
			RedisPassword:     cfg.RateLimitRedisPassword,
			RedisDB:           cfg.RateLimitRedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to initialize rate limiter: %v", err)
		}
		return limiter
	}

	return rateLimitMiddlewares{
		Register:   newLimiter(cfg.RegisterRPM),
		DeviceCode: newLimiter(cfg.DeviceCodeRPM),
		Token:      newLimiter(cfg.TokenRPM),
		Login:      newLimiter(cfg.LoginRPM),
		Claim:      newLimiter(cfg.ClaimRPM),
	}
}
