package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SkullXA/kaliun-connect-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Installation{},
		&models.HealthReport{},
		&models.User{},
		&models.DeviceAuthRequest{},
		&models.Session{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Installation operations

// CreateInstallation inserts a new installation record. A uniqueness
// violation on the claim code maps to ErrDuplicateClaimCode so the caller
// can regenerate and retry.
func (s *Store) CreateInstallation(inst *models.Installation) error {
	if err := s.db.Create(inst).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateClaimCode
		}
		return err
	}
	return nil
}

func (s *Store) GetInstallation(installID string) (*models.Installation, error) {
	var inst models.Installation
	if err := s.db.Where("install_id = ?", installID).First(&inst).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &inst, nil
}

func (s *Store) GetInstallationByClaimCode(claimCode string) (*models.Installation, error) {
	var inst models.Installation
	if err := s.db.Where("claim_code = ?", claimCode).First(&inst).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &inst, nil
}

// ClaimInstallation binds an installation to an owner exactly once. The
// check-and-set is one conditional UPDATE against the store: it succeeds
// only while owner_id is still NULL, so two simultaneous claims of the same
// code produce exactly one winner. A read-then-write here would reopen the
// double-claim window.
func (s *Store) ClaimInstallation(
	claimCode, ownerID, customerName, customerEmail string,
) (*models.Installation, error) {
	now := time.Now()
	res := s.db.Model(&models.Installation{}).
		Where("claim_code = ? AND owner_id IS NULL", claimCode).
		Updates(map[string]any{
			"owner_id":       ownerID,
			"claimed_at":     now,
			"customer_name":  customerName,
			"customer_email": customerEmail,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish unknown code from lost race / repeated claim.
		var inst models.Installation
		err := s.db.Where("claim_code = ?", claimCode).First(&inst).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrAlreadyClaimed
	}

	var inst models.Installation
	if err := s.db.Where("claim_code = ?", claimCode).First(&inst).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &inst, nil
}

// UpdateInstallationCredentials persists a freshly minted token pair as one
// statement. Bootstrap must not expose a "signed but not stored" state, so
// the caller only returns tokens after this succeeds.
func (s *Store) UpdateInstallationCredentials(
	installID, accessToken string, accessExpiresAt time.Time,
	refreshToken string, refreshExpiresAt time.Time,
) error {
	res := s.db.Model(&models.Installation{}).
		Where("install_id = ?", installID).
		Updates(map[string]any{
			"access_token":             accessToken,
			"access_token_expires_at":  accessExpiresAt,
			"refresh_token":            refreshToken,
			"refresh_token_expires_at": refreshExpiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// UpdateInstallationAccessToken replaces only the access token, leaving the
// refresh token in place (the non-rotating refresh path).
func (s *Store) UpdateInstallationAccessToken(
	installID, accessToken string, accessExpiresAt time.Time,
) error {
	res := s.db.Model(&models.Installation{}).
		Where("install_id = ?", installID).
		Updates(map[string]any{
			"access_token":            accessToken,
			"access_token_expires_at": accessExpiresAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// MarkInstallationConfirmed sets the confirmed flag; there is no unconfirm.
func (s *Store) MarkInstallationConfirmed(installID string) error {
	res := s.db.Model(&models.Installation{}).
		Where("install_id = ?", installID).
		Update("confirmed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// TouchInstallationLastSeen updates the last-seen timestamp, the sole
// signal for online/offline display status.
func (s *Store) TouchInstallationLastSeen(installID string, at time.Time) error {
	return s.db.Model(&models.Installation{}).
		Where("install_id = ?", installID).
		Update("last_seen_at", at).Error
}

func (s *Store) ListInstallationsByOwner(ownerID string) ([]models.Installation, error) {
	var insts []models.Installation
	err := s.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&insts).Error
	return insts, err
}

func (s *Store) CountUnclaimedInstallations() (int64, error) {
	var n int64
	err := s.db.Model(&models.Installation{}).Where("owner_id IS NULL").Count(&n).Error
	return n, err
}

// Health report operations

func (s *Store) CreateHealthReport(report *models.HealthReport) error {
	return s.db.Create(report).Error
}

func (s *Store) ListHealthReports(installID string, limit int) ([]models.HealthReport, error) {
	var reports []models.HealthReport
	err := s.db.Where("install_id = ?", installID).
		Order("reported_at DESC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}

// User operations

func (s *Store) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &user, nil
}

func (s *Store) CreateUser(user *models.User) error {
	if err := s.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEmailConflict
		}
		return err
	}
	return nil
}

func (s *Store) UpdateUser(user *models.User) error {
	return s.db.Save(user).Error
}

// UpsertExternalUser creates or updates a user from the external IdP,
// matched by the IdP subject id. Profile fields follow the IdP on every
// login; the account itself is created at first authentication.
func (s *Store) UpsertExternalUser(
	id, externalID, username, email, fullName string,
) (*models.User, error) {
	var user models.User
	err := s.db.Where("external_id = ? AND auth_source = ?", externalID, "idp").
		First(&user).Error

	if err == nil {
		user.Username = username
		user.Email = email
		user.FullName = fullName
		if err := s.db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update external user: %w", err)
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query external user: %w", err)
	}

	user = models.User{
		ID:         id,
		Username:   username,
		Email:      email,
		FullName:   fullName,
		ExternalID: externalID,
		AuthSource: "idp",
	}
	if err := s.db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailConflict
		}
		return nil, fmt.Errorf("failed to create external user: %w", err)
	}
	return &user, nil
}

// Device authorization request operations

func (s *Store) CreateDeviceAuthRequest(req *models.DeviceAuthRequest) error {
	return s.db.Create(req).Error
}

// GetDeviceAuthRequestsBySuffix retrieves candidates with a matching device
// code suffix for hash verification during exchange.
func (s *Store) GetDeviceAuthRequestsBySuffix(suffix string) ([]*models.DeviceAuthRequest, error) {
	var reqs []*models.DeviceAuthRequest
	if err := s.db.Where("device_code_suffix = ?", suffix).Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *Store) GetDeviceAuthRequestByUserCode(userCode string) (*models.DeviceAuthRequest, error) {
	var req models.DeviceAuthRequest
	if err := s.db.Where("user_code = ?", userCode).First(&req).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &req, nil
}

func (s *Store) UpdateDeviceAuthRequest(req *models.DeviceAuthRequest) error {
	return s.db.Save(req).Error
}

func (s *Store) DeleteDeviceAuthRequestByID(id int64) error {
	return s.db.Delete(&models.DeviceAuthRequest{}, id).Error
}

// DeleteExpiredDeviceAuthRequests opportunistically bounds storage growth;
// correctness never depends on it because expiry is checked lazily.
func (s *Store) DeleteExpiredDeviceAuthRequests() error {
	return s.db.Where("expires_at < ?", time.Now()).Delete(&models.DeviceAuthRequest{}).Error
}

func (s *Store) CountPendingDeviceAuthRequests() (int64, error) {
	var n int64
	err := s.db.Model(&models.DeviceAuthRequest{}).
		Where("authorized = ? AND expires_at > ?", false, time.Now()).
		Count(&n).Error
	return n, err
}

// Session operations

func (s *Store) CreateSession(session *models.Session) error {
	return s.db.Create(session).Error
}

func (s *Store) GetSession(id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &session, nil
}

func (s *Store) DeleteSession(id string) error {
	return s.db.Delete(&models.Session{}, "id = ?", id).Error
}

func (s *Store) DeleteExpiredSessions() error {
	return s.db.Where("expires_at < ?", time.Now()).Delete(&models.Session{}).Error
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// isUniqueViolation detects a uniqueness-constraint error across the
// supported drivers. GORM translates some but not all of these, so the
// message check covers sqlite and postgres wording.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
