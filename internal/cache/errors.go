package cache

import "errors"

var (
	// ErrCacheMiss is returned when a key is not found in the cache
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheUnavailable is returned when the cache backend cannot be reached
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidValue is returned when a cached value cannot be encoded or decoded
	ErrInvalidValue = errors.New("cache: invalid value")
)
