package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/SkullXA/kaliun-connect-api/internal/codes"
	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
)

var (
	ErrClaimCodeNotFound  = errors.New("claim code not found")
	ErrAlreadyClaimed     = errors.New("installation already claimed")
	ErrInvalidClaimCode   = errors.New("malformed claim code")
	ErrMissingCustomerRef = errors.New("customer name is required")
)

// ClaimService binds an installation to exactly one owner exactly once.
type ClaimService struct {
	store    *store.Store
	registry *RegistryService
	metrics  metrics.Recorder
}

func NewClaimService(s *store.Store, registry *RegistryService, m metrics.Recorder) *ClaimService {
	return &ClaimService{
		store:    s,
		registry: registry,
		metrics:  m,
	}
}

// Claim consumes a claim code on behalf of a user. The underlying update
// is a single conditional statement, so of two simultaneous claims of the
// same code exactly one wins and the other gets ErrAlreadyClaimed.
func (s *ClaimService) Claim(
	ctx context.Context,
	claimCode, userID, customerName, customerEmail string,
) (*models.Installation, error) {
	claimCode = NormalizeClaimCode(claimCode)
	if err := validateClaimCode(claimCode); err != nil {
		return nil, err
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, ErrMissingCustomerRef
	}

	inst, err := s.store.ClaimInstallation(claimCode, userID, customerName, customerEmail)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			s.metrics.RecordClaimAttempt("not_found")
			return nil, ErrClaimCodeNotFound
		case errors.Is(err, store.ErrAlreadyClaimed):
			s.metrics.RecordClaimAttempt("conflict")
			return nil, ErrAlreadyClaimed
		default:
			return nil, fmt.Errorf("claim failed: %w", err)
		}
	}

	// The cached config payload still carries pre-claim customer fields.
	s.registry.InvalidateConfigCache(ctx, inst.InstallID)

	s.metrics.RecordClaimAttempt("success")
	log.Printf("[Claim] Installation claimed install_id=%s owner=%s", inst.InstallID, userID)
	return inst, nil
}

// NormalizeClaimCode undoes user formatting: uppercase, surrounding
// whitespace and stray dashes removed.
func NormalizeClaimCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "")
}

func validateClaimCode(code string) error {
	if len(code) != 6 {
		return ErrInvalidClaimCode
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codes.Alphabet, rune(code[i])) {
			return ErrInvalidClaimCode
		}
	}
	return nil
}
