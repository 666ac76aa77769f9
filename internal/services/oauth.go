package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
	"github.com/SkullXA/kaliun-connect-api/internal/token"
)

// RFC 8628 / RFC 6749 outcome sentinels. Handlers map these onto the
// stable error code strings the wire protocol requires.
var (
	ErrAuthorizationPending = errors.New("authorization_pending")
	ErrExpiredToken         = errors.New("expired_token")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrAccessDenied         = errors.New("access_denied")
)

// OAuthService turns authorized device-auth requests into oauth token
// pairs and handles their subsequent refresh.
type OAuthService struct {
	store      *store.Store
	config     *config.Config
	issuer     *token.Issuer
	deviceAuth *DeviceAuthService
	metrics    metrics.Recorder
}

func NewOAuthService(
	s *store.Store,
	cfg *config.Config,
	issuer *token.Issuer,
	deviceAuth *DeviceAuthService,
	m metrics.Recorder,
) *OAuthService {
	return &OAuthService{
		store:      s,
		config:     cfg,
		issuer:     issuer,
		deviceAuth: deviceAuth,
		metrics:    m,
	}
}

// ExchangeDeviceCode is the poll target. Outcomes: unknown code is
// invalid_grant, expired is expired_token (and the record is purged),
// unauthorized is authorization_pending, authorized mints an oauth pair
// and consumes the record so a second exchange of the same code fails as
// invalid_grant.
func (s *OAuthService) ExchangeDeviceCode(deviceCode, clientID string) (*TokenPair, error) {
	req, err := s.deviceAuth.GetByDeviceCode(deviceCode)
	if err != nil {
		if errors.Is(err, ErrDeviceCodeExpired) {
			s.metrics.RecordDeviceAuthExchange("expired")
			return nil, ErrExpiredToken
		}
		s.metrics.RecordDeviceAuthExchange("invalid")
		return nil, ErrInvalidGrant
	}

	if clientID != "" && req.ClientID != clientID {
		s.metrics.RecordDeviceAuthExchange("invalid")
		return nil, ErrAccessDenied
	}

	if !req.Authorized {
		s.metrics.RecordDeviceAuthExchange("pending")
		return nil, ErrAuthorizationPending
	}

	pair, err := s.mintOAuthPair(req.UserID)
	if err != nil {
		return nil, err
	}

	// Single exchange: the record dies with the first success.
	if err := s.deviceAuth.Consume(req); err != nil {
		log.Printf("[OAuth] Failed to consume device auth request id=%d: %v", req.ID, err)
	}

	s.metrics.RecordDeviceAuthExchange("success")
	log.Printf("[OAuth] Device code exchanged user=%s client=%s", req.UserID, req.ClientID)
	return pair, nil
}

// Refresh verifies an oauth refresh token and mints a new pair for the
// same subject. Independent of any device-auth record.
func (s *OAuthService) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, token.ClassOAuthRefresh)
	if err != nil {
		s.metrics.RecordTokenRefresh("oauth", false)
		return nil, ErrInvalidGrant
	}

	// The subject must still exist; a deleted account ends its tokens.
	if _, err := s.store.GetUserByID(claims.Subject); err != nil {
		s.metrics.RecordTokenRefresh("oauth", false)
		return nil, ErrInvalidGrant
	}

	pair, err := s.mintOAuthPair(claims.Subject)
	if err != nil {
		s.metrics.RecordTokenRefresh("oauth", false)
		return nil, err
	}

	s.metrics.RecordTokenRefresh("oauth", true)
	return pair, nil
}

// Userinfo resolves an oauth access token to the user it was minted for.
func (s *OAuthService) Userinfo(accessToken string) (*models.User, error) {
	claims, err := s.issuer.Verify(accessToken, token.ClassOAuthAccess)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			s.metrics.RecordTokenValidation("expired")
		} else {
			s.metrics.RecordTokenValidation("invalid")
		}
		return nil, err
	}

	user, err := s.store.GetUserByID(claims.Subject)
	if err != nil {
		s.metrics.RecordTokenValidation("invalid")
		return nil, token.ErrInvalidToken
	}

	s.metrics.RecordTokenValidation("success")
	return user, nil
}

func (s *OAuthService) mintOAuthPair(userID string) (*TokenPair, error) {
	start := time.Now()
	accessToken, accessExpiresAt, err := s.issuer.Issue(
		userID, token.ClassOAuthAccess, s.config.OAuthAccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("token generation failed: %w", err)
	}
	refreshToken, refreshExpiresAt, err := s.issuer.Issue(
		userID, token.ClassOAuthRefresh, s.config.OAuthRefreshTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("refresh token generation failed: %w", err)
	}

	duration := time.Since(start)
	s.metrics.RecordTokenIssued(string(token.ClassOAuthAccess), duration)
	s.metrics.RecordTokenIssued(string(token.ClassOAuthRefresh), duration)

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}
