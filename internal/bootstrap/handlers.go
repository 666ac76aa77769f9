package bootstrap

import (
	"github.com/SkullXA/kaliun-connect-api/internal/handlers"
)

// handlerSet groups all HTTP handlers
type handlerSet struct {
	Installation *handlers.InstallationHandler
	OAuth        *handlers.OAuthHandler
	Auth         *handlers.AuthHandler
	Claim        *handlers.ClaimHandler
	Link         *handlers.LinkHandler
	Health       *handlers.HealthHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(app *Application) handlerSet {
	return handlerSet{
		Installation: handlers.NewInstallationHandler(app.RegistryService, app.Config),
		OAuth:        handlers.NewOAuthHandler(app.DeviceAuthService, app.OAuthService, app.Config),
		Auth: handlers.NewAuthHandler(
			app.Resolver, app.UserService, app.Config.BaseURL, app.MetricsRecorder,
		),
		Claim:  handlers.NewClaimHandler(app.ClaimService, app.Config),
		Link:   handlers.NewLinkHandler(app.DeviceAuthService, app.Config),
		Health: handlers.NewHealthHandler(app.DB),
	}
}
