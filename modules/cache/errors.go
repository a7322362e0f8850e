package cache

import (
	"errors"
)

// Error definitions
var (
	// ErrCacheFull is returned when the memory backend is full and cannot store new items
	ErrCacheFull = errors.New("cache is full")

	// ErrInvalidKey is returned when the key is invalid
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrInvalidValue is returned when the frontend cannot encode or decode a value
	ErrInvalidValue = errors.New("invalid cache value")

	// ErrNotConnected is returned when an operation is attempted on a closed backend
	ErrNotConnected = errors.New("cache not connected")

	// ErrUnknownAdapter is returned when a frontend or backend adapter name is not registered
	ErrUnknownAdapter = errors.New("unknown cache adapter")

	// ErrSectionInvalid is returned when a cache config section is missing required keys
	ErrSectionInvalid = errors.New("invalid cache section")
)
