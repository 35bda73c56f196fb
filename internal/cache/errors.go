package cache

import "errors"

var (
	// ErrCacheMiss is returned when no entry exists for a short code.
	ErrCacheMiss = errors.New("cache miss")
	// ErrUnavailable is returned when the cache backing store can't be
	// reached. Callers are expected to treat it as a miss: the cache is a
	// performance optimization, never a correctness dependency.
	ErrUnavailable = errors.New("cache unavailable")
)
