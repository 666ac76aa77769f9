package token

import "errors"

var (
	// ErrTokenGeneration indicates token signing failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken indicates the token is malformed, carries a bad
	// signature, or has the wrong class for the operation
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token verified correctly but has expired.
	// Callers use this to suggest refresh-and-retry instead of re-auth.
	ErrExpiredToken = errors.New("token expired")
)
