package bootstrap

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SkullXA/kaliun-connect-api/internal/cache"
	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/identity"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/services"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
	"github.com/SkullXA/kaliun-connect-api/internal/token"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	Issuer               *token.Issuer
	MetricsRecorder      metrics.Recorder
	ConfigCache          cache.Cache[services.ConfigPayload]
	RateLimitRedisClient *redis.Client

	// Business layer
	Resolver          identity.Resolver
	UserService       *services.UserService
	RegistryService   *services.RegistryService
	ClaimService      *services.ClaimService
	DeviceAuthService *services.DeviceAuthService
	OAuthService      *services.OAuthService

	// HTTP
	Handlers handlerSet
	Router   *gin.Engine
	Server   *http.Server
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, cache, and Redis
func (app *Application) initializeInfrastructure() error {
	var err error

	app.DB, err = initializeDatabase(app.Config)
	if err != nil {
		return err
	}

	app.Issuer = token.NewIssuer(app.Config)
	app.MetricsRecorder = metrics.Init(app.Config.MetricsEnabled)

	app.ConfigCache, err = initializeConfigCache(app.Config)
	if err != nil {
		return err
	}

	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up services and the identity resolver
func (app *Application) initializeBusinessLayer() {
	app.Resolver = initializeResolver(app.Config, app.DB)
	log.Printf("[Bootstrap] Identity resolution strategy: %s", app.Resolver.Name())

	app.UserService = services.NewUserService(app.DB)
	app.RegistryService = services.NewRegistryService(
		app.DB, app.Config, app.Issuer, app.ConfigCache, app.MetricsRecorder,
	)
	app.ClaimService = services.NewClaimService(app.DB, app.RegistryService, app.MetricsRecorder)
	app.DeviceAuthService = services.NewDeviceAuthService(app.DB, app.Config, app.MetricsRecorder)
	app.OAuthService = services.NewOAuthService(
		app.DB, app.Config, app.Issuer, app.DeviceAuthService, app.MetricsRecorder,
	)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.Handlers = initializeHandlers(app)
	app.Router = setupRouter(app)
	app.Server = createHTTPServer(app.Config, app.Router)
}

// initializeResolver selects the process-wide identity strategy. The
// choice is fixed at startup; nothing downstream ever switches per
// request.
func initializeResolver(cfg *config.Config, db *store.Store) identity.Resolver {
	switch cfg.IdentityMode {
	case config.IdentityModeIdP:
		return identity.NewIdPResolver(db, cfg)
	default:
		return identity.NewLocalResolver(db, cfg.SessionTTL)
	}
}
