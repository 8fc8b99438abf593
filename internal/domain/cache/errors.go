package cache

import "errors"

// Sentinel errors for the cache package.
var (
	ErrInvalidKey = errors.New("cache key requires realm and name")
	ErrNilFetch   = errors.New("cache fetch function is nil")
)
