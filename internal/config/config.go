package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity resolution mode constants
const (
	IdentityModeLocal = "local"
	IdentityModeIdP   = "idp"
)

// Cache backend constants
const (
	CacheBackendMemory  = "memory"
	CacheBackendRueidis = "rueidis"
)

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	IsProduction bool

	// Token signing. The secret must stay stable for the lifetime of all
	// outstanding tokens; rotating it invalidates every unexpired token.
	JWTSecret string

	// Token lifetimes
	DeviceAccessTokenTTL  time.Duration // 7 days
	DeviceRefreshTokenTTL time.Duration // 90 days
	OAuthAccessTokenTTL   time.Duration // 1 hour
	OAuthRefreshTokenTTL  time.Duration // 30 days

	// Refresh token handling. When rotation is off (the default) a device
	// keeps its refresh token for the full 90-day lifetime; when on, every
	// refresh overwrites the stored value and invalidates the previous one.
	RotateRefreshTokens bool

	// Device authorization flow settings
	DeviceAuthExpiration time.Duration
	PollingInterval      int // seconds, advisory

	// Session settings
	SessionSecret string
	SessionMaxAge int // cookie max age in seconds
	SessionTTL    time.Duration

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Identity resolution
	IdentityMode string // "local" or "idp"

	// External IdP (only used when IdentityMode == "idp")
	IdPAuthURL       string
	IdPTokenURL      string
	IdPUserinfoURL   string
	IdPClientID      string
	IdPClientSecret  string
	IdPRedirectURL   string
	IdPScopes        []string
	IdPTimeout       time.Duration
	IdPMaxRetries    int
	IdPRetryDelay    time.Duration
	IdPMaxRetryDelay time.Duration

	// Metrics
	MetricsEnabled             bool
	MetricsToken               string
	MetricsGaugeUpdateEnabled  bool
	MetricsGaugeUpdateInterval time.Duration

	// Rate limiting
	EnableRateLimit          bool
	RateLimitStore           string // "memory" or "redis"
	RateLimitRedisAddr       string
	RateLimitRedisPassword   string
	RateLimitRedisDB         int
	RateLimitCleanupInterval time.Duration
	RegisterRPM              int
	DeviceCodeRPM            int
	TokenRPM                 int
	LoginRPM                 int
	ClaimRPM                 int

	// Config payload cache
	CacheBackend   string // "memory" or "rueidis"
	CacheRedisAddr string
	ConfigCacheTTL time.Duration
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", "kaliun.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction: getEnvBool("PRODUCTION", false),

		JWTSecret: getEnv("JWT_SECRET", "change-me-256-bit-secret"),

		DeviceAccessTokenTTL:  getEnvDuration("DEVICE_ACCESS_TOKEN_TTL", 7*24*time.Hour),
		DeviceRefreshTokenTTL: getEnvDuration("DEVICE_REFRESH_TOKEN_TTL", 90*24*time.Hour),
		OAuthAccessTokenTTL:   getEnvDuration("OAUTH_ACCESS_TOKEN_TTL", time.Hour),
		OAuthRefreshTokenTTL:  getEnvDuration("OAUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RotateRefreshTokens:   getEnvBool("ROTATE_REFRESH_TOKENS", false),

		DeviceAuthExpiration: getEnvDuration("DEVICE_AUTH_EXPIRATION", 15*time.Minute),
		PollingInterval:      getEnvInt("DEVICE_AUTH_POLL_INTERVAL", 5),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 86400),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		IdentityMode: getEnv("IDENTITY_MODE", IdentityModeLocal),

		IdPAuthURL:       getEnv("IDP_AUTH_URL", ""),
		IdPTokenURL:      getEnv("IDP_TOKEN_URL", ""),
		IdPUserinfoURL:   getEnv("IDP_USERINFO_URL", ""),
		IdPClientID:      getEnv("IDP_CLIENT_ID", ""),
		IdPClientSecret:  getEnv("IDP_CLIENT_SECRET", ""),
		IdPRedirectURL:   getEnv("IDP_REDIRECT_URL", ""),
		IdPScopes:        getEnvSlice("IDP_SCOPES", []string{"openid", "profile", "email"}),
		IdPTimeout:       getEnvDuration("IDP_TIMEOUT", 10*time.Second),
		IdPMaxRetries:    getEnvInt("IDP_MAX_RETRIES", 3),
		IdPRetryDelay:    getEnvDuration("IDP_RETRY_DELAY", 1*time.Second),
		IdPMaxRetryDelay: getEnvDuration("IDP_MAX_RETRY_DELAY", 10*time.Second),

		MetricsEnabled:             getEnvBool("METRICS_ENABLED", true),
		MetricsToken:               getEnv("METRICS_TOKEN", ""),
		MetricsGaugeUpdateEnabled:  getEnvBool("METRICS_GAUGE_UPDATE_ENABLED", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", time.Minute),

		EnableRateLimit:          getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:           getEnv("RATE_LIMIT_STORE", "memory"),
		RateLimitRedisAddr:       getEnv("RATE_LIMIT_REDIS_ADDR", "localhost:6379"),
		RateLimitRedisPassword:   getEnv("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:         getEnvInt("RATE_LIMIT_REDIS_DB", 0),
		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		RegisterRPM:              getEnvInt("RATE_LIMIT_REGISTER_RPM", 30),
		DeviceCodeRPM:            getEnvInt("RATE_LIMIT_DEVICE_CODE_RPM", 10),
		TokenRPM:                 getEnvInt("RATE_LIMIT_TOKEN_RPM", 60),
		LoginRPM:                 getEnvInt("RATE_LIMIT_LOGIN_RPM", 10),
		ClaimRPM:                 getEnvInt("RATE_LIMIT_CLAIM_RPM", 20),

		CacheBackend:   getEnv("CACHE_BACKEND", CacheBackendMemory),
		CacheRedisAddr: getEnv("CACHE_REDIS_ADDR", "localhost:6379"),
		ConfigCacheTTL: getEnvDuration("CONFIG_CACHE_TTL", 5*time.Minute),
	}
}

// Validate checks configuration consistency at startup.
func (c *Config) Validate() error {
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("invalid DATABASE_DRIVER: %s (must be: sqlite, postgres)", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	if c.IsProduction && c.JWTSecret == "change-me-256-bit-secret" {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.PollingInterval < 1 {
		return fmt.Errorf("DEVICE_AUTH_POLL_INTERVAL must be at least 1 second, got %d", c.PollingInterval)
	}
	// The token endpoint must admit at least the advertised poll cadence,
	// otherwise the server rate-limits more aggressively than it promises.
	if c.EnableRateLimit && c.TokenRPM < 60/c.PollingInterval {
		return fmt.Errorf(
			"RATE_LIMIT_TOKEN_RPM (%d) is below the advertised poll rate of %d/min",
			c.TokenRPM, 60/c.PollingInterval,
		)
	}
	switch c.IdentityMode {
	case IdentityModeLocal:
		// No additional validation needed
	case IdentityModeIdP:
		if c.IdPAuthURL == "" || c.IdPTokenURL == "" || c.IdPUserinfoURL == "" {
			return errors.New(
				"IDP_AUTH_URL, IDP_TOKEN_URL and IDP_USERINFO_URL are required when IDENTITY_MODE=idp",
			)
		}
		if c.IdPClientID == "" || c.IdPClientSecret == "" {
			return errors.New("IDP_CLIENT_ID and IDP_CLIENT_SECRET are required when IDENTITY_MODE=idp")
		}
	default:
		return fmt.Errorf("invalid IDENTITY_MODE: %s (must be: local, idp)", c.IdentityMode)
	}
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRueidis:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND: %s (must be: memory, rueidis)", c.CacheBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := []string{}
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
