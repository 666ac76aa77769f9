package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrAlreadyClaimed is returned by ClaimInstallation when the conditional
	// update matched no row because the owner is already set (0 rows updated).
	ErrAlreadyClaimed = errors.New("installation already claimed")

	// ErrDuplicateClaimCode signals a uniqueness-constraint violation on the
	// claim code; the registry regenerates and retries.
	ErrDuplicateClaimCode = errors.New("claim code already exists")

	// ErrEmailConflict is returned when an email already exists
	ErrEmailConflict = errors.New("email already registered")
)
