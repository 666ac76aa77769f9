package services

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/codes"
	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
	"github.com/SkullXA/kaliun-connect-api/internal/util"
)

var (
	ErrMissingClientID   = errors.New("client_id is required")
	ErrDeviceCodeInvalid = errors.New("device code not found")
	ErrDeviceCodeExpired = errors.New("device code expired")
	ErrUserCodeNotFound  = errors.New("user code not found")
	ErrUserCodeExpired   = errors.New("user code expired")
)

// DeviceAuthService brokers the RFC 8628 polling handshake between a
// constrained device and an authenticated browser session.
type DeviceAuthService struct {
	store   *store.Store
	config  *config.Config
	metrics metrics.Recorder
}

func NewDeviceAuthService(s *store.Store, cfg *config.Config, m metrics.Recorder) *DeviceAuthService {
	return &DeviceAuthService{store: s, config: cfg, metrics: m}
}

// RequestCode creates a device/user code pair. The plaintext device code
// leaves this function exactly once; only its hash is persisted.
func (s *DeviceAuthService) RequestCode(clientID, scope string) (*models.DeviceAuthRequest, error) {
	if clientID == "" {
		s.metrics.RecordDeviceAuthRequest(false)
		return nil, ErrMissingClientID
	}

	// 20 random bytes, hex-encoded: long enough that brute forcing within
	// the 15-minute window is impractical.
	codeBytes, err := util.CryptoRandomBytes(20)
	if err != nil {
		s.metrics.RecordDeviceAuthRequest(false)
		return nil, fmt.Errorf("failed to generate device code: %w", err)
	}
	deviceCode := hex.EncodeToString(codeBytes)

	salt, err := util.CryptoRandomString(20)
	if err != nil {
		s.metrics.RecordDeviceAuthRequest(false)
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	userCode, err := codes.GenerateUserCode()
	if err != nil {
		s.metrics.RecordDeviceAuthRequest(false)
		return nil, err
	}

	req := &models.DeviceAuthRequest{
		DeviceCode:       deviceCode,
		DeviceCodeHash:   util.HashToken(deviceCode, salt),
		DeviceCodeSalt:   salt,
		DeviceCodeSuffix: deviceCode[len(deviceCode)-8:],
		UserCode:         userCode,
		ClientID:         clientID,
		Scope:            scope,
		ExpiresAt:        time.Now().Add(s.config.DeviceAuthExpiration),
		Interval:         s.config.PollingInterval,
	}

	if err := s.store.CreateDeviceAuthRequest(req); err != nil {
		s.metrics.RecordDeviceAuthRequest(false)
		return nil, fmt.Errorf("failed to create device auth request: %w", err)
	}

	s.metrics.RecordDeviceAuthRequest(true)
	return req, nil
}

// GetByDeviceCode resolves a plaintext device code to its record. The
// lookup goes through the suffix index and a constant-time hash compare;
// an expired match is purged on sight so its user code cannot be reused.
func (s *DeviceAuthService) GetByDeviceCode(deviceCode string) (*models.DeviceAuthRequest, error) {
	if len(deviceCode) != 40 {
		return nil, ErrDeviceCodeInvalid
	}
	for _, x := range []byte(deviceCode) {
		if x < '0' || (x > '9' && x < 'a') || x > 'f' {
			return nil, ErrDeviceCodeInvalid
		}
	}

	candidates, err := s.store.GetDeviceAuthRequestsBySuffix(deviceCode[len(deviceCode)-8:])
	if err != nil {
		return nil, ErrDeviceCodeInvalid
	}

	for _, req := range candidates {
		hash := util.HashToken(deviceCode, req.DeviceCodeSalt)
		if subtle.ConstantTimeCompare([]byte(req.DeviceCodeHash), []byte(hash)) != 1 {
			continue
		}

		if req.IsExpired() {
			if err := s.store.DeleteDeviceAuthRequestByID(req.ID); err != nil {
				log.Printf("[DeviceAuth] Failed to purge expired request id=%d: %v", req.ID, err)
			}
			return nil, ErrDeviceCodeExpired
		}

		req.DeviceCode = deviceCode
		return req, nil
	}

	return nil, ErrDeviceCodeInvalid
}

// GetByUserCode resolves a human-typed user code, accepting display
// formatting ("ABCD-EFGH").
func (s *DeviceAuthService) GetByUserCode(userCode string) (*models.DeviceAuthRequest, error) {
	req, err := s.store.GetDeviceAuthRequestByUserCode(codes.NormalizeUserCode(userCode))
	if err != nil {
		return nil, ErrUserCodeNotFound
	}

	if req.IsExpired() {
		if err := s.store.DeleteDeviceAuthRequestByID(req.ID); err != nil {
			log.Printf("[DeviceAuth] Failed to purge expired request id=%d: %v", req.ID, err)
		}
		return nil, ErrUserCodeExpired
	}

	return req, nil
}

// Authorize binds an unexpired request to the authorizing user. Calling
// it again on an already-authorized record is a no-op: the bound user
// never changes and no error is returned.
func (s *DeviceAuthService) Authorize(userCode, userID string) (*models.DeviceAuthRequest, error) {
	req, err := s.GetByUserCode(userCode)
	if err != nil {
		return nil, err
	}

	if req.Authorized {
		return req, nil
	}

	now := time.Now()
	req.Authorized = true
	req.UserID = userID
	req.AuthorizedAt = &now

	if err := s.store.UpdateDeviceAuthRequest(req); err != nil {
		return nil, fmt.Errorf("failed to authorize request: %w", err)
	}

	s.metrics.RecordDeviceAuthAuthorized()
	log.Printf("[DeviceAuth] Request authorized user_code=%s user=%s", req.UserCode, userID)
	return req, nil
}

// Consume deletes a request after its single successful token exchange.
func (s *DeviceAuthService) Consume(req *models.DeviceAuthRequest) error {
	return s.store.DeleteDeviceAuthRequestByID(req.ID)
}

// PurgeExpired opportunistically removes expired requests to bound
// storage growth. Correctness never depends on this running.
func (s *DeviceAuthService) PurgeExpired() {
	if err := s.store.DeleteExpiredDeviceAuthRequests(); err != nil {
		log.Printf("[DeviceAuth] Failed to purge expired requests: %v", err)
	}
}
