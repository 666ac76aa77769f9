package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/SkullXA/kaliun-connect-api/internal/models"
	"github.com/SkullXA/kaliun-connect-api/internal/store"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidSignup   = errors.New("invalid signup data")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
)

// UserService handles self-service account creation for the local
// identity mode. External accounts are created by the IdP resolver at
// first login instead.
type UserService struct {
	store *store.Store
}

func NewUserService(s *store.Store) *UserService {
	return &UserService{store: s}
}

// Signup creates a local account with a bcrypt password hash.
func (s *UserService) Signup(username, email, password, fullName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if username == "" || email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidSignup
	}
	if len(password) < 8 {
		return nil, ErrPasswordTooWeak
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		AuthSource:   "local",
	}

	if err := s.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrEmailConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[User] Account created username=%s", username)
	return user, nil
}

// GetUserByID loads a user by id.
func (s *UserService) GetUserByID(id string) (*models.User, error) {
	user, err := s.store.GetUserByID(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
