package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupLocalTest(t *testing.T, sessionTTL time.Duration) (*gin.Engine, *LocalResolver, *store.Store) {
	gin.SetMode(gin.TestMode)

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	resolver := NewLocalResolver(s, sessionTTL)

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))

	r.POST("/login", func(c *gin.Context) {
		user, err := resolver.Login(c, c.PostForm("username"), c.PostForm("password"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	r.GET("/me", func(c *gin.Context) {
		user, err := resolver.Resolve(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": user.Username})
	})
	r.POST("/logout", func(c *gin.Context) {
		if err := resolver.Logout(c); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	return r, resolver, s
}

func createLocalUser(t *testing.T, s *store.Store, username, password string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		AuthSource:   "local",
	}
	require.NoError(t, s.CreateUser(user))
	return user
}

func doLogin(t *testing.T, r *gin.Engine, username, password string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.PostForm = map[string][]string{
		"username": {username},
		"password": {password},
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestLocalResolver_LoginAndResolve(t *testing.T) {
	r, _, s := setupLocalTest(t, time.Hour)
	createLocalUser(t, s, "alice", "password123")

	w := doLogin(t, r, "alice", "password123")
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestLocalResolver_WrongPassword(t *testing.T) {
	r, _, s := setupLocalTest(t, time.Hour)
	createLocalUser(t, s, "alice", "password123")

	w := doLogin(t, r, "alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doLogin(t, r, "nobody", "password123")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLocalResolver_NoCookie(t *testing.T) {
	r, _, _ := setupLocalTest(t, time.Hour)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLocalResolver_ExpiredSession(t *testing.T) {
	r, _, s := setupLocalTest(t, -time.Minute)
	createLocalUser(t, s, "alice", "password123")

	w := doLogin(t, r, "alice", "password123")
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The expired row was deleted on first touch
	require.NoError(t, s.DeleteExpiredSessions())
}

func TestLocalResolver_Logout(t *testing.T) {
	r, _, s := setupLocalTest(t, time.Hour)
	createLocalUser(t, s, "alice", "password123")

	w := doLogin(t, r, "alice", "password123")
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// The old cookie no longer resolves: the session row is gone
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLocalResolver_Name(t *testing.T) {
	_, resolver, _ := setupLocalTest(t, time.Hour)
	assert.Equal(t, "local", resolver.Name())
}
