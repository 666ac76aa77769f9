package identity

import (
	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/models"
)

// Session keys shared by all resolvers
const (
	sessionKeySessionID    = "session_id"
	sessionKeyAccessToken  = "idp_access_token"
	sessionKeyRefreshToken = "idp_refresh_token"
	sessionKeyExpiry       = "idp_expiry"
)

// Resolver turns an incoming browser request into the authenticated user.
// Exactly one implementation is active per process, selected by
// IDENTITY_MODE at startup. Handlers never branch on the mode; they only
// see this interface.
type Resolver interface {
	// Resolve returns the user bound to the current request's session.
	// Returns ErrNotAuthenticated when no session exists and
	// ErrSessionExpired when the session can no longer be renewed.
	Resolve(c *gin.Context) (*models.User, error)

	// Login verifies credentials and establishes a session for the user.
	Login(c *gin.Context, username, password string) (*models.User, error)

	// Logout tears down the current session. Safe to call without one.
	Logout(c *gin.Context) error

	// Name returns the resolver name for logging
	Name() string
}
