package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest         = errors.New("bad request")
	ErrTooManyCharacters  = errors.New("too many characters in one request")
	ErrMissingTeam        = errors.New("missing team")
	ErrServiceUnavailable = errors.New("service unavailable")
)
