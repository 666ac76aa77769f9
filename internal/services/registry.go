package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/SkullXA/kaliun-connect-api/internal/cache"
	"github.com/SkullXA/kaliun-connect-api/internal/codes"
	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
	"github.com/SkullXA/kaliun-connect-api/internal/token"
)

var (
	ErrInstallationNotFound = errors.New("installation not found")
	ErrNotClaimed           = errors.New("installation not claimed yet")
	ErrBootstrapConsumed    = errors.New("bootstrap already confirmed, bearer token required")
	ErrTokenMismatch        = errors.New("token does not belong to this installation")
)

// maxClaimCodeAttempts bounds regeneration when a freshly generated claim
// code collides with an existing one. With a 31-character alphabet and 6
// positions a single retry is already rare.
const maxClaimCodeAttempts = 5

// TokenPair is a freshly minted access/refresh credential set.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_token_expires_at,omitempty"`
}

// ConfigPayload is what a device receives from a config fetch. Auth is
// only populated on the one-time bootstrap path and never cached.
type ConfigPayload struct {
	InstallID     string     `json:"install_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	Metadata      string     `json:"metadata,omitempty"`
	Confirmed     bool       `json:"confirmed"`
	Auth          *TokenPair `json:"auth,omitempty"`
}

// RegistryService owns the device lifecycle: registration, claim-gated
// bootstrap, confirm, credential refresh and health submission.
type RegistryService struct {
	store       *store.Store
	config      *config.Config
	issuer      *token.Issuer
	configCache cache.Cache[ConfigPayload]
	metrics     metrics.Recorder
}

func NewRegistryService(
	s *store.Store,
	cfg *config.Config,
	issuer *token.Issuer,
	configCache cache.Cache[ConfigPayload],
	m metrics.Recorder,
) *RegistryService {
	return &RegistryService{
		store:       s,
		config:      cfg,
		issuer:      issuer,
		configCache: configCache,
		metrics:     m,
	}
}

// Register creates an installation record with a fresh claim code, or
// returns the existing record unchanged. The claim code is never
// regenerated for a known install id: a device that crashes after
// registering but before displaying its code must be able to retry and
// see the same code.
func (s *RegistryService) Register(installID, metadata string) (*models.Installation, bool, error) {
	existing, err := s.store.GetInstallation(installID)
	if err == nil {
		s.metrics.RecordRegistration(false)
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up installation: %w", err)
	}

	for attempt := 0; attempt < maxClaimCodeAttempts; attempt++ {
		claimCode, err := codes.GenerateClaimCode()
		if err != nil {
			return nil, false, err
		}

		inst := &models.Installation{
			InstallID: installID,
			ClaimCode: claimCode,
			Metadata:  metadata,
		}

		err = s.store.CreateInstallation(inst)
		if err == nil {
			s.metrics.RecordRegistration(true)
			log.Printf("[Registry] Registered installation install_id=%s", installID)
			return inst, true, nil
		}
		if errors.Is(err, store.ErrDuplicateClaimCode) {
			// The collision may also be on install_id when two registers
			// race; the survivor's record wins either way.
			if existing, lookupErr := s.store.GetInstallation(installID); lookupErr == nil {
				s.metrics.RecordRegistration(false)
				return existing, false, nil
			}
			continue
		}
		return nil, false, fmt.Errorf("failed to create installation: %w", err)
	}

	return nil, false, fmt.Errorf("failed to generate unique claim code after %d attempts", maxClaimCodeAttempts)
}

// FetchConfig is the claim-gated config endpoint behind two named paths:
// a valid bearer token for this install id selects resync, no token on a
// not-yet-confirmed record selects bootstrap, anything else is refused.
func (s *RegistryService) FetchConfig(
	ctx context.Context,
	installID, bearerToken string,
) (*ConfigPayload, error) {
	inst, err := s.store.GetInstallation(installID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInstallationNotFound
		}
		return nil, err
	}

	if !inst.IsClaimed() {
		s.metrics.RecordBootstrap("denied")
		return nil, ErrNotClaimed
	}

	if bearerToken != "" {
		claims, err := s.issuer.Verify(bearerToken, token.ClassDeviceAccess)
		if err != nil {
			s.metrics.RecordBootstrap("denied")
			return nil, err
		}
		if claims.Subject != installID {
			s.metrics.RecordBootstrap("denied")
			return nil, ErrTokenMismatch
		}
		return s.resync(ctx, inst)
	}

	if inst.Confirmed {
		// Bootstrap credentials are single-issuance. Once the device has
		// acknowledged receipt, anonymous fetches are refused for good.
		s.metrics.RecordBootstrap("denied")
		return nil, ErrBootstrapConsumed
	}

	return s.bootstrap(inst)
}

// bootstrap mints the device's long-lived credential pair and persists it
// before returning. Reminting before confirm is intentional: a device
// that received credentials but crashed before storing them locally can
// fetch again and simply gets a fresh pair.
func (s *RegistryService) bootstrap(inst *models.Installation) (*ConfigPayload, error) {
	pair, err := s.mintDevicePair(inst.InstallID)
	if err != nil {
		return nil, err
	}

	// Credentials become visible to the caller only after they are stored;
	// a failed persist means a failed bootstrap, never a dangling token.
	if err := s.store.UpdateInstallationCredentials(
		inst.InstallID,
		pair.AccessToken, pair.AccessExpiresAt,
		pair.RefreshToken, pair.RefreshExpiresAt,
	); err != nil {
		return nil, fmt.Errorf("failed to persist bootstrap credentials: %w", err)
	}

	s.metrics.RecordBootstrap("issued")
	log.Printf("[Registry] Bootstrap credentials issued install_id=%s", inst.InstallID)

	payload := payloadFor(inst)
	payload.Auth = pair
	return payload, nil
}

// resync returns the current config without touching credentials. The
// payload is cacheable since it only changes on claim and confirm.
func (s *RegistryService) resync(ctx context.Context, inst *models.Installation) (*ConfigPayload, error) {
	s.metrics.RecordBootstrap("resync")

	payload, err := cache.GetWithFetch(
		ctx,
		s.configCache,
		inst.InstallID,
		s.config.ConfigCacheTTL,
		func(ctx context.Context, key string) (ConfigPayload, error) {
			fresh, err := s.store.GetInstallation(key)
			if err != nil {
				return ConfigPayload{}, err
			}
			return *payloadFor(fresh), nil
		},
	)
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// ConfirmConfig marks the bootstrap credentials as received. Irreversible,
// there is no unconfirm.
func (s *RegistryService) ConfirmConfig(ctx context.Context, installID string) error {
	if err := s.store.MarkInstallationConfirmed(installID); err != nil {
		s.metrics.RecordConfirm(false)
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrInstallationNotFound
		}
		return err
	}

	if err := s.configCache.Delete(ctx, installID); err != nil {
		log.Printf("[Registry] Failed to invalidate config cache install_id=%s: %v", installID, err)
	}

	s.metrics.RecordConfirm(true)
	log.Printf("[Registry] Installation confirmed install_id=%s", installID)
	return nil
}

// RefreshAccessToken verifies a device refresh token and mints a new
// access token. The presented token must also match the value currently
// stored on the installation, so overwriting the stored value revokes
// every previously issued refresh token.
func (s *RegistryService) RefreshAccessToken(refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, token.ClassDeviceRefresh)
	if err != nil {
		s.metrics.RecordTokenRefresh("device", false)
		return nil, err
	}

	inst, err := s.store.GetInstallation(claims.Subject)
	if err != nil {
		s.metrics.RecordTokenRefresh("device", false)
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInstallationNotFound
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(inst.RefreshToken), []byte(refreshToken)) != 1 {
		s.metrics.RecordTokenRefresh("device", false)
		return nil, ErrTokenMismatch
	}

	if s.config.RotateRefreshTokens {
		pair, err := s.mintDevicePair(inst.InstallID)
		if err != nil {
			s.metrics.RecordTokenRefresh("device", false)
			return nil, err
		}
		if err := s.store.UpdateInstallationCredentials(
			inst.InstallID,
			pair.AccessToken, pair.AccessExpiresAt,
			pair.RefreshToken, pair.RefreshExpiresAt,
		); err != nil {
			s.metrics.RecordTokenRefresh("device", false)
			return nil, fmt.Errorf("failed to persist rotated credentials: %w", err)
		}
		s.metrics.RecordTokenRefresh("device", true)
		return pair, nil
	}

	start := time.Now()
	accessToken, accessExpiresAt, err := s.issuer.Issue(
		inst.InstallID, token.ClassDeviceAccess, s.config.DeviceAccessTokenTTL,
	)
	if err != nil {
		s.metrics.RecordTokenRefresh("device", false)
		return nil, err
	}
	s.metrics.RecordTokenIssued(string(token.ClassDeviceAccess), time.Since(start))

	if err := s.store.UpdateInstallationAccessToken(
		inst.InstallID, accessToken, accessExpiresAt,
	); err != nil {
		s.metrics.RecordTokenRefresh("device", false)
		return nil, fmt.Errorf("failed to persist access token: %w", err)
	}

	s.metrics.RecordTokenRefresh("device", true)
	return &TokenPair{
		AccessToken:     accessToken,
		AccessExpiresAt: accessExpiresAt,
	}, nil
}

// SubmitHealth persists a raw health payload and bumps the installation's
// last-seen timestamp, the sole online/offline signal.
func (s *RegistryService) SubmitHealth(installID, bearerToken, payload string) error {
	claims, err := s.issuer.Verify(bearerToken, token.ClassDeviceAccess)
	if err != nil {
		s.metrics.RecordHealthReport(false)
		return err
	}
	if claims.Subject != installID {
		s.metrics.RecordHealthReport(false)
		return ErrTokenMismatch
	}

	now := time.Now()
	report := &models.HealthReport{
		ID:         uuid.New().String(),
		InstallID:  installID,
		Payload:    payload,
		ReportedAt: now,
	}
	if err := s.store.CreateHealthReport(report); err != nil {
		s.metrics.RecordHealthReport(false)
		return fmt.Errorf("failed to persist health report: %w", err)
	}

	if err := s.store.TouchInstallationLastSeen(installID, now); err != nil {
		log.Printf("[Registry] Failed to update last seen install_id=%s: %v", installID, err)
	}

	s.metrics.RecordHealthReport(true)
	return nil
}

// ListForOwner returns the installations claimed by a user, newest first.
func (s *RegistryService) ListForOwner(ownerID string) ([]models.Installation, error) {
	return s.store.ListInstallationsByOwner(ownerID)
}

// ListHealthReports returns recent health reports for an installation.
func (s *RegistryService) ListHealthReports(installID string, limit int) ([]models.HealthReport, error) {
	return s.store.ListHealthReports(installID, limit)
}

// InvalidateConfigCache drops the cached config payload for an
// installation. Called after claim mutates customer fields.
func (s *RegistryService) InvalidateConfigCache(ctx context.Context, installID string) {
	if err := s.configCache.Delete(ctx, installID); err != nil {
		log.Printf("[Registry] Failed to invalidate config cache install_id=%s: %v", installID, err)
	}
}

func (s *RegistryService) mintDevicePair(installID string) (*TokenPair, error) {
	start := time.Now()
	accessToken, accessExpiresAt, err := s.issuer.Issue(
		installID, token.ClassDeviceAccess, s.config.DeviceAccessTokenTTL,
	)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExpiresAt, err := s.issuer.Issue(
		installID, token.ClassDeviceRefresh, s.config.DeviceRefreshTokenTTL,
	)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	s.metrics.RecordTokenIssued(string(token.ClassDeviceAccess), duration)
	s.metrics.RecordTokenIssued(string(token.ClassDeviceRefresh), duration)

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func payloadFor(inst *models.Installation) *ConfigPayload {
	return &ConfigPayload{
		InstallID:     inst.InstallID,
		CustomerName:  inst.CustomerName,
		CustomerEmail: inst.CustomerEmail,
		Metadata:      inst.Metadata,
		Confirmed:     inst.Confirmed,
	}
}
