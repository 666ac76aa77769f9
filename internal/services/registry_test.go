package services

import (
	"context"
	"testing"

	"github.com/SkullXA/kaliun-connect-api/internal/codes"
	"github.com/SkullXA/kaliun-connect-api/internal/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CreatesWithClaimCode(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	inst, created, err := registry.Register("install-1", `{"fw":"1.2.0"}`)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, inst.ClaimCode, 6)
	assert.False(t, inst.IsClaimed())
	assert.False(t, inst.Confirmed)
}

func TestRegister_IdempotentSameCode(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	first, created, err := registry.Register("install-1", "")
	require.NoError(t, err)
	require.True(t, created)

	// A device that crashed before displaying its code retries and must
	// see the same code, not a fresh one.
	second, created, err := registry.Register("install-1", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ClaimCode, second.ClaimCode)
	assert.Equal(t, first.ID, second.ID)
}

func TestFetchConfig_UnclaimedRefused(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	_, _, err := registry.Register("install-1", "")
	require.NoError(t, err)

	_, err = registry.FetchConfig(context.Background(), "install-1", "")
	assert.ErrorIs(t, err, ErrNotClaimed)
}

func TestFetchConfig_UnknownInstallation(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	_, err := registry.FetchConfig(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrInstallationNotFound)
}

func TestFetchConfig_BootstrapIssuesCredentials(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	inst, _, err := registry.Register("install-1", "")
	require.NoError(t, err)
	_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme GmbH", "ops@acme.test")
	require.NoError(t, err)

	payload, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)
	require.NotNil(t, payload.Auth)
	assert.NotEmpty(t, payload.Auth.AccessToken)
	assert.NotEmpty(t, payload.Auth.RefreshToken)
	assert.Equal(t, "Acme GmbH", payload.CustomerName)
	assert.False(t, payload.Confirmed)

	// The pair is persisted before it is returned
	stored, err := s.GetInstallation("install-1")
	require.NoError(t, err)
	assert.Equal(t, payload.Auth.AccessToken, stored.AccessToken)
	assert.Equal(t, payload.Auth.RefreshToken, stored.RefreshToken)
}

func TestFetchConfig_BootstrapRepeatableUntilConfirm(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	inst, _, err := registry.Register("install-1", "")
	require.NoError(t, err)
	_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme", "")
	require.NoError(t, err)

	first, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)

	// A device that lost the credentials before storing them fetches
	// again and gets a fresh pair; the old refresh token is revoked.
	second, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)
	require.NotNil(t, second.Auth)
	assert.NotEqual(t, first.Auth.RefreshToken, second.Auth.RefreshToken)

	_, err = registry.RefreshAccessToken(first.Auth.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestFetchConfig_AnonymousRefusedAfterConfirm(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	inst, _, err := registry.Register("install-1", "")
	require.NoError(t, err)
	_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme", "")
	require.NoError(t, err)

	payload, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)
	require.NoError(t, registry.ConfirmConfig(context.Background(), "install-1"))

	_, err = registry.FetchConfig(context.Background(), "install-1", "")
	assert.ErrorIs(t, err, ErrBootstrapConsumed)

	// The token path still works after confirm
	resync, err := registry.FetchConfig(context.Background(), "install-1", payload.Auth.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, resync.Auth)
	assert.True(t, resync.Confirmed)
}

func TestFetchConfig_TokenForOtherInstallationRefused(t *testing.T) {
	s := setupTestStore(t)
	cfg := testConfig()
	registry := newTestRegistry(t, s, cfg)

	for _, id := range []string{"install-1", "install-2"} {
		inst, _, err := registry.Register(id, "")
		require.NoError(t, err)
		_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme", "")
		require.NoError(t, err)
	}

	payload, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)

	_, err = registry.FetchConfig(context.Background(), "install-2", payload.Auth.AccessToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestFetchConfig_WrongClassTokenRefused(t *testing.T) {
	s := setupTestStore(t)
	cfg := testConfig()
	registry := newTestRegistry(t, s, cfg)

	inst, _, err := registry.Register("install-1", "")
	require.NoError(t, err)
	_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme", "")
	require.NoError(t, err)

	payload, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)

	// The refresh token must not open the config endpoint
	_, err = registry.FetchConfig(context.Background(), "install-1", payload.Auth.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestConfirmConfig_UnknownInstallation(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	err := registry.ConfirmConfig(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInstallationNotFound)
}

func TestRefreshAccessToken(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	inst, _, err := registry.Register("install-1", "")
	require.NoError(t, err)
	_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme", "")
	require.NoError(t, err)

	payload, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)

	pair, err := registry.RefreshAccessToken(payload.Auth.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	// Rotation is off by default: no new refresh token is minted
	assert.Empty(t, pair.RefreshToken)

	// The old refresh token remains valid
	_, err = registry.RefreshAccessToken(payload.Auth.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshAccessToken_Rotation(t *testing.T) {
	s := setupTestStore(t)
	cfg := testConfig()
	cfg.RotateRefreshTokens = true
	registry := newTestRegistry(t, s, cfg)

	inst, _, err := registry.Register("install-1", "")
	require.NoError(t, err)
	_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme", "")
	require.NoError(t, err)

	payload, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)

	pair, err := registry.RefreshAccessToken(payload.Auth.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, payload.Auth.RefreshToken, pair.RefreshToken)

	// Rotation revokes the presented token
	_, err = registry.RefreshAccessToken(payload.Auth.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	_, err = registry.RefreshAccessToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshAccessToken_InvalidToken(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	_, err := registry.RefreshAccessToken("garbage")
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestSubmitHealth(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	inst, _, err := registry.Register("install-1", "")
	require.NoError(t, err)
	_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme", "")
	require.NoError(t, err)

	payload, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)

	err = registry.SubmitHealth("install-1", payload.Auth.AccessToken, `{"cpu":12,"uptime":3600}`)
	require.NoError(t, err)

	stored, err := s.GetInstallation("install-1")
	require.NoError(t, err)
	assert.NotNil(t, stored.LastSeenAt)

	reports, err := registry.ListHealthReports("install-1", 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.JSONEq(t, `{"cpu":12,"uptime":3600}`, reports[0].Payload)
}

func TestSubmitHealth_TokenForOtherInstallation(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	for _, id := range []string{"install-1", "install-2"} {
		inst, _, err := registry.Register(id, "")
		require.NoError(t, err)
		_, err = s.ClaimInstallation(inst.ClaimCode, "user-1", "Acme", "")
		require.NoError(t, err)
	}

	payload, err := registry.FetchConfig(context.Background(), "install-1", "")
	require.NoError(t, err)

	err = registry.SubmitHealth("install-2", payload.Auth.AccessToken, "{}")
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestClaimCodeAlphabet(t *testing.T) {
	s := setupTestStore(t)
	registry := newTestRegistry(t, s, testConfig())

	inst, _, err := registry.Register("install-1", "")
	require.NoError(t, err)
	for _, c := range inst.ClaimCode {
		assert.Contains(t, codes.Alphabet, string(c))
	}
}
