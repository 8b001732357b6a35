package alloc

import "github.com/pkg/errors"

// Errors returned by the Allocator. Failed operations leave the allocator
// unchanged, except that a failed placement is counted in the statistics.
var (
	ErrNotInitialized  = errors.New("memory not initialized")
	ErrInvalidSize     = errors.New("invalid size")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrNotFound        = errors.New("block not found")
	ErrInvalidStrategy = errors.New("unknown allocation strategy")
)
