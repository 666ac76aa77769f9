package services

import (
	"testing"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
	"github.com/SkullXA/kaliun-connect-api/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOAuth(t *testing.T, s *store.Store) (*OAuthService, *DeviceAuthService) {
	cfg := testConfig()
	deviceAuth := NewDeviceAuthService(s, cfg, metrics.NewNoopMetrics())
	oauth := NewOAuthService(s, cfg, token.NewIssuer(cfg), deviceAuth, metrics.NewNoopMetrics())
	return oauth, deviceAuth
}

func TestExchangeDeviceCode_Pending(t *testing.T) {
	s := setupTestStore(t)
	oauth, deviceAuth := newTestOAuth(t, s)

	req, err := deviceAuth.RequestCode("kaliun-device", "")
	require.NoError(t, err)

	_, err = oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	assert.ErrorIs(t, err, ErrAuthorizationPending)

	// Polling again keeps pending until a human authorizes
	_, err = oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	assert.ErrorIs(t, err, ErrAuthorizationPending)
}

func TestExchangeDeviceCode_SuccessIsSingleUse(t *testing.T) {
	s := setupTestStore(t)
	oauth, deviceAuth := newTestOAuth(t, s)
	user := createTestUser(t, s, "alice")

	req, err := deviceAuth.RequestCode("kaliun-device", "")
	require.NoError(t, err)
	_, err = deviceAuth.Authorize(req.UserCode, user.ID)
	require.NoError(t, err)

	pair, err := oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// The record died with the first success
	_, err = oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestExchangeDeviceCode_UnknownCode(t *testing.T) {
	s := setupTestStore(t)
	oauth, _ := newTestOAuth(t, s)

	_, err := oauth.ExchangeDeviceCode("0123456789abcdef0123456789abcdef01234567", "kaliun-device")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestExchangeDeviceCode_Expired(t *testing.T) {
	s := setupTestStore(t)
	oauth, deviceAuth := newTestOAuth(t, s)

	req, err := deviceAuth.RequestCode("kaliun-device", "")
	require.NoError(t, err)

	stored, err := s.GetDeviceAuthRequestByUserCode(req.UserCode)
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.UpdateDeviceAuthRequest(stored))

	_, err = oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	assert.ErrorIs(t, err, ErrExpiredToken)

	// Expiry purges the record; a later poll sees invalid_grant
	_, err = oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestExchangeDeviceCode_ClientMismatch(t *testing.T) {
	s := setupTestStore(t)
	oauth, deviceAuth := newTestOAuth(t, s)
	user := createTestUser(t, s, "alice")

	req, err := deviceAuth.RequestCode("kaliun-device", "")
	require.NoError(t, err)
	_, err = deviceAuth.Authorize(req.UserCode, user.ID)
	require.NoError(t, err)

	_, err = oauth.ExchangeDeviceCode(req.DeviceCode, "other-client")
	assert.ErrorIs(t, err, ErrAccessDenied)

	// The mismatch does not consume the record
	_, err = oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	assert.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	s := setupTestStore(t)
	oauth, deviceAuth := newTestOAuth(t, s)
	user := createTestUser(t, s, "alice")

	req, err := deviceAuth.RequestCode("kaliun-device", "")
	require.NoError(t, err)
	_, err = deviceAuth.Authorize(req.UserCode, user.ID)
	require.NoError(t, err)
	pair, err := oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	require.NoError(t, err)

	refreshed, err := oauth.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEmpty(t, refreshed.RefreshToken)
}

func TestRefresh_InvalidToken(t *testing.T) {
	s := setupTestStore(t)
	oauth, _ := newTestOAuth(t, s)

	_, err := oauth.Refresh("garbage")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	s := setupTestStore(t)
	oauth, deviceAuth := newTestOAuth(t, s)
	user := createTestUser(t, s, "alice")

	req, err := deviceAuth.RequestCode("kaliun-device", "")
	require.NoError(t, err)
	_, err = deviceAuth.Authorize(req.UserCode, user.ID)
	require.NoError(t, err)
	pair, err := oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	require.NoError(t, err)

	_, err = oauth.Refresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestUserinfo(t *testing.T) {
	s := setupTestStore(t)
	oauth, deviceAuth := newTestOAuth(t, s)
	user := createTestUser(t, s, "alice")

	req, err := deviceAuth.RequestCode("kaliun-device", "")
	require.NoError(t, err)
	_, err = deviceAuth.Authorize(req.UserCode, user.ID)
	require.NoError(t, err)
	pair, err := oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	require.NoError(t, err)

	got, err := oauth.Userinfo(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
}

func TestUserinfo_RefreshTokenRejected(t *testing.T) {
	s := setupTestStore(t)
	oauth, deviceAuth := newTestOAuth(t, s)
	user := createTestUser(t, s, "alice")

	req, err := deviceAuth.RequestCode("kaliun-device", "")
	require.NoError(t, err)
	_, err = deviceAuth.Authorize(req.UserCode, user.ID)
	require.NoError(t, err)
	pair, err := oauth.ExchangeDeviceCode(req.DeviceCode, "kaliun-device")
	require.NoError(t, err)

	_, err = oauth.Userinfo(pair.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}
