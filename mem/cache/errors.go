package cache

import "github.com/pkg/errors"

// Errors returned by the cache models.
var (
	// ErrInvalidConfig is returned for a geometry that does not divide
	// evenly or an unknown replacement policy.
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrNotInitialized is returned when accessing a hierarchy without levels.
	ErrNotInitialized = errors.New("cache not initialized")

	// ErrLevelNotFound is returned when a level name is unknown.
	ErrLevelNotFound = errors.New("cache level not found")
)
