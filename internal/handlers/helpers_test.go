package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/cache"
	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/services"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
	"github.com/SkullXA/kaliun-connect-api/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router     *gin.Engine
	store      *store.Store
	config     *config.Config
	registry   *services.RegistryService
	deviceAuth *services.DeviceAuthService
	oauth      *services.OAuthService
}

func setupTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	cfg := &config.Config{
		BaseURL:               "http://localhost:8080",
		JWTSecret:             "test-secret-key-for-signing",
		DeviceAccessTokenTTL:  7 * 24 * time.Hour,
		DeviceRefreshTokenTTL: 90 * 24 * time.Hour,
		OAuthAccessTokenTTL:   time.Hour,
		OAuthRefreshTokenTTL:  30 * 24 * time.Hour,
		DeviceAuthExpiration:  15 * time.Minute,
		PollingInterval:       5,
		ConfigCacheTTL:        5 * time.Minute,
	}

	m := metrics.NewNoopMetrics()
	issuer := token.NewIssuer(cfg)
	registry := services.NewRegistryService(s, cfg, issuer, cache.NewMemoryCache[services.ConfigPayload](), m)
	deviceAuth := services.NewDeviceAuthService(s, cfg, m)
	oauth := services.NewOAuthService(s, cfg, issuer, deviceAuth, m)

	installations := NewInstallationHandler(registry, cfg)
	oauthHandler := NewOAuthHandler(deviceAuth, oauth, cfg)

	r := gin.New()
	r.POST("/installations/register", installations.Register)
	r.GET("/installations/:id/config", installations.FetchConfig)
	r.DELETE("/installations/:id/config", installations.ConfirmConfig)
	r.POST("/installations/token/refresh", installations.RefreshToken)
	r.POST("/installations/:id/health", installations.SubmitHealth)
	r.POST("/oauth/device/code", oauthHandler.DeviceCodeRequest)
	r.POST("/oauth/token", oauthHandler.Token)
	r.GET("/oauth/userinfo", oauthHandler.Userinfo)

	return &testEnv{
		router:     r,
		store:      s,
		config:     cfg,
		registry:   registry,
		deviceAuth: deviceAuth,
		oauth:      oauth,
	}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postFormAs(t *testing.T, path string, form url.Values, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Test-User", userID)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// registerAndClaim walks an installation through register and claim,
// returning its install id.
func (e *testEnv) registerAndClaim(t *testing.T, installID, ownerID string) {
	_, _, err := e.registry.Register(installID, "")
	require.NoError(t, err)
	inst, err := e.store.GetInstallation(installID)
	require.NoError(t, err)
	_, err = e.store.ClaimInstallation(inst.ClaimCode, ownerID, "Acme GmbH", "ops@acme.test")
	require.NoError(t, err)
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	user := &models.User{
		ID:         uuid.New().String(),
		Username:   username,
		Email:      username + "@example.com",
		FullName:   "Test " + username,
		AuthSource: "local",
	}
	require.NoError(t, e.store.CreateUser(user))
	return user
}
