package service

import (
	"context"
	"errors"

	"github.com/okian/armory/internal/adapters/mq/queue"
	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/internal/domain/overview"
	"github.com/okian/armory/internal/roster"
)

// Sentinel errors returned by the service.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrInvalidCharacter = errors.New("realm and name are required")
)

// Error kinds reported for failed lookups.
const (
	KindInvalid      = "invalid"
	KindNotFound     = "not_found"
	KindUnknownTeam  = "unknown_team"
	KindTimeout      = "timeout"
	KindToken        = "token"
	KindUpstream     = "upstream"
	KindMalformed    = "malformed"
	KindMerge        = "merge"
	KindBackpressure = "backpressure"
	KindUnavailable  = "unavailable"
	KindInternal     = "internal"
)

// ErrorKind classifies err for callers that report failures as data.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCharacter):
		return KindInvalid
	case errors.Is(err, roster.ErrUnknownTeam):
		return KindUnknownTeam
	case upstream.IsNotFound(err):
		return KindNotFound
	case errors.Is(err, upstream.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, upstream.ErrTokenAcquisition):
		return KindToken
	case errors.Is(err, upstream.ErrMalformedResponse):
		return KindMalformed
	case errors.Is(err, upstream.ErrUpstream):
		return KindUpstream
	case errors.Is(err, overview.ErrMerge):
		return KindMerge
	case errors.Is(err, queue.ErrBackpressure):
		return KindBackpressure
	case errors.Is(err, ErrNotStarted), errors.Is(err, queue.ErrClosed), errors.Is(err, context.Canceled):
		return KindUnavailable
	default:
		return KindInternal
	}
}
