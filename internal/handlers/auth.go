package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/identity"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/services"
	"github.com/SkullXA/kaliun-connect-api/internal/util"
)

// AuthHandler drives the human login/signup/logout entry points. The
// flows follow a redirect-with-message pattern; rendering the messages
// is the frontend's concern.
type AuthHandler struct {
	resolver identity.Resolver
	users    *services.UserService
	baseURL  string
	metrics  metrics.Recorder
}

func NewAuthHandler(
	resolver identity.Resolver,
	users *services.UserService,
	baseURL string,
	m metrics.Recorder,
) *AuthHandler {
	return &AuthHandler{resolver: resolver, users: users, baseURL: baseURL, metrics: m}
}

// redirectWithMessage sends the browser to target with a message query
// parameter, refusing external redirect targets.
func redirectWithMessage(c *gin.Context, baseURL, target, key, message string) {
	if !util.IsRedirectSafe(target, baseURL) {
		target = "/"
	}

	u, err := url.Parse(target)
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	q := u.Query()
	if message != "" {
		q.Set(key, message)
	}
	u.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, u.String())
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	redirect := c.DefaultPostForm("redirect", "/")

	if username == "" || password == "" {
		redirectWithMessage(c, h.baseURL, "/login", "error", "Username and password are required")
		return
	}

	_, err := h.resolver.Login(c, username, password)
	if err != nil {
		h.metrics.RecordLogin(h.resolver.Name(), false)
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials),
			errors.Is(err, identity.ErrIdPRejected):
			redirectWithMessage(c, h.baseURL, "/login", "error", "Invalid username or password")
		default:
			redirectWithMessage(c, h.baseURL, "/login", "error", "Login is temporarily unavailable")
		}
		return
	}

	h.metrics.RecordLogin(h.resolver.Name(), true)
	redirectWithMessage(c, h.baseURL, redirect, "", "")
}

// Signup handles POST /signup. Only meaningful in local identity mode;
// in IdP mode accounts come from the provider.
func (h *AuthHandler) Signup(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")
	fullName := c.PostForm("full_name")

	if _, err := h.users.Signup(username, email, password, fullName); err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTaken):
			redirectWithMessage(c, h.baseURL, "/signup", "error", "Username or email already taken")
		case errors.Is(err, services.ErrPasswordTooWeak):
			redirectWithMessage(c, h.baseURL, "/signup", "error", "Password must be at least 8 characters")
		case errors.Is(err, services.ErrInvalidSignup):
			redirectWithMessage(c, h.baseURL, "/signup", "error", "Username and a valid email are required")
		default:
			redirectWithMessage(c, h.baseURL, "/signup", "error", "Signup is temporarily unavailable")
		}
		return
	}

	redirectWithMessage(c, h.baseURL, "/login", "message", "Account created, please log in")
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.resolver.Logout(c); err != nil {
		redirectWithMessage(c, h.baseURL, "/", "error", "Logout failed")
		return
	}
	redirectWithMessage(c, h.baseURL, "/login", "message", "Logged out")
}
