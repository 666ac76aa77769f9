package identity

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
)

// LocalResolver authenticates against the local users table and tracks
// logins in a server-side sessions table. The cookie only carries the
// session id, so revocation is a row delete.
type LocalResolver struct {
	store      *store.Store
	sessionTTL time.Duration
}

// NewLocalResolver creates a resolver backed by the local session table.
func NewLocalResolver(s *store.Store, sessionTTL time.Duration) *LocalResolver {
	return &LocalResolver{
		store:      s,
		sessionTTL: sessionTTL,
	}
}

// Resolve looks up the server-side session referenced by the cookie.
func (r *LocalResolver) Resolve(c *gin.Context) (*models.User, error) {
	sess := sessions.Default(c)

	sessionID, ok := sess.Get(sessionKeySessionID).(string)
	if !ok || sessionID == "" {
		return nil, ErrNotAuthenticated
	}

	record, err := r.store.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if record.IsExpired() {
		// Expired rows are removed on first touch rather than by a sweeper
		if err := r.store.DeleteSession(sessionID); err != nil {
			log.Printf("[Identity] Failed to delete expired session: %v", err)
		}
		return nil, ErrSessionExpired
	}

	user, err := r.store.GetUserByID(record.UserID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	return user, nil
}

// Login verifies credentials against the users table and creates a
// session row plus the cookie pointing at it.
func (r *LocalResolver) Login(
	c *gin.Context,
	username, password string,
) (*models.User, error) {
	user, err := r.store.GetUserByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash),
		[]byte(password),
	); err != nil {
		return nil, ErrInvalidCredentials
	}

	record := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(r.sessionTTL),
	}
	if err := r.store.CreateSession(record); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess := sessions.Default(c)
	sess.Set(sessionKeySessionID, record.ID)
	if err := sess.Save(); err != nil {
		return nil, fmt.Errorf("failed to save session cookie: %w", err)
	}

	return user, nil
}

// Logout deletes the session row and clears the cookie.
func (r *LocalResolver) Logout(c *gin.Context) error {
	sess := sessions.Default(c)

	if sessionID, ok := sess.Get(sessionKeySessionID).(string); ok && sessionID != "" {
		if err := r.store.DeleteSession(sessionID); err != nil {
			log.Printf("[Identity] Failed to delete session: %v", err)
		}
	}

	sess.Clear()
	return sess.Save()
}

// Name returns the resolver name for logging
func (r *LocalResolver) Name() string {
	return "local"
}
