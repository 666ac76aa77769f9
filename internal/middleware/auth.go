package middleware

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/identity"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
)

// Context keys set by RequireUser.
const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
)

// RequireUser resolves the session to a user via the active identity
// resolver and aborts to the login page when there is none. Handlers
// downstream read the user from the context and never see which
// resolution strategy is active.
func RequireUser(resolver identity.Resolver, m metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolver.Resolve(c)
		if err != nil {
			result := "denied"
			if errors.Is(err, identity.ErrSessionExpired) {
				result = "expired"
			}
			m.RecordSessionResolved(resolver.Name(), result)

			redirectURL := url.QueryEscape(c.Request.URL.String())
			c.Redirect(http.StatusFound, "/login?redirect="+redirectURL)
			c.Abort()
			return
		}

		m.RecordSessionResolved(resolver.Name(), "ok")
		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Next()
	}
}
