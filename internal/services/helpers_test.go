package services

import (
	"testing"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/cache"
	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
	"github.com/SkullXA/kaliun-connect-api/internal/token"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupTestStore(t *testing.T) *store.Store {
	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	return s
}

func testConfig() *config.Config {
	return &config.Config{
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
}

func newTestRegistry(t *testing.T, s *store.Store, cfg *config.Config) *RegistryService {
	return NewRegistryService(
		s, cfg,
		token.NewIssuer(cfg),
		cache.NewMemoryCache[ConfigPayload](),
		metrics.NewNoopMetrics(),
	)
}

func createTestUser(t *testing.T, s *store.Store, username string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
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
