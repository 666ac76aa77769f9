package bootstrap

import (
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/middleware"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(app *Application) *gin.Engine {
	cfg := app.Config
	setupGinMode(cfg)

	r := gin.New()
	r.Use(metrics.HTTPMetricsMiddleware(app.MetricsRecorder))
	r.Use(gin.Logger(), gin.Recovery())

	setupSessionMiddleware(r, cfg)

	r.GET("/healthz", app.Handlers.Health.Healthz)
	setupMetricsEndpoint(r, cfg)

	if !cfg.IsProduction {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limits := setupRateLimiting(cfg)
	requireUser := middleware.RequireUser(app.Resolver, app.MetricsRecorder)

	// Device-facing surface
	installations := r.Group("/installations")
	{
		installations.POST("/register", limits.Register, app.Handlers.Installation.Register)
		installations.GET("/:id/config", app.Handlers.Installation.FetchConfig)
		installations.DELETE("/:id/config", app.Handlers.Installation.ConfirmConfig)
		installations.POST("/token/refresh", limits.Token, app.Handlers.Installation.RefreshToken)
		installations.POST("/:id/health", app.Handlers.Installation.SubmitHealth)
	}

	// OAuth2 device-flow surface
	oauth := r.Group("/oauth")
	{
		oauth.POST("/device/code", limits.DeviceCode, app.Handlers.OAuth.DeviceCodeRequest)
		oauth.POST("/token", limits.Token, app.Handlers.OAuth.Token)
		oauth.GET("/userinfo", app.Handlers.OAuth.Userinfo)
	}

	// Human-facing entry points
	r.POST("/login", limits.Login, app.Handlers.Auth.Login)
	r.POST("/signup", limits.Login, app.Handlers.Auth.Signup)
	r.POST("/logout", app.Handlers.Auth.Logout)

	r.POST("/claim/:code", limits.Claim, requireUser, app.Handlers.Claim.Claim)
	r.POST("/link", requireUser, app.Handlers.Link.Link)
	r.GET("/link", requireUser, app.Handlers.Link.Link)

	// Authenticated JSON API for the dashboard
	api := r.Group("/api", requireUser)
	{
		api.GET("/installations", app.Handlers.Installation.ListInstallations)
		api.POST("/claim/:code", limits.Claim, app.Handlers.Claim.ClaimAPI)
	}

	logServerStartup(cfg)
	return r
}

// setupGinMode sets release mode in production
func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
}

// setupSessionMiddleware configures cookie-backed session handling
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("kaliun_session", sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

func logServerStartup(cfg *config.Config) {
	log.Printf("Starting server addr=%s base_url=%s identity_mode=%s",
		cfg.ServerAddr, cfg.BaseURL, cfg.IdentityMode)
}
