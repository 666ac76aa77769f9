package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSignup(t *testing.T) {
	s := setupTestStore(t)
	users := NewUserService(s)

	user, err := users.Signup("alice", "Alice@Example.com", "password123", "Alice A")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "local", user.AuthSource)
	assert.False(t, user.IsExternal())

	// Password is stored as a bcrypt hash
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestSignup_Validation(t *testing.T) {
	s := setupTestStore(t)
	users := NewUserService(s)

	_, err := users.Signup("", "a@example.com", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidSignup)

	_, err = users.Signup("alice", "not-an-email", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidSignup)

	_, err = users.Signup("alice", "a@example.com", "short", "")
	assert.ErrorIs(t, err, ErrPasswordTooWeak)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	s := setupTestStore(t)
	users := NewUserService(s)

	_, err := users.Signup("alice", "a@example.com", "password123", "")
	require.NoError(t, err)

	_, err = users.Signup("alice2", "a@example.com", "password123", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestGetUserByID(t *testing.T) {
	s := setupTestStore(t)
	users := NewUserService(s)

	created, err := users.Signup("alice", "a@example.com", "password123", "")
	require.NoError(t, err)

	got, err := users.GetUserByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = users.GetUserByID("nope")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
