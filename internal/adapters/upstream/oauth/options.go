package oauth

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/pkg/logger"
)

// BodyStyle selects how grant_type is sent to the token endpoint.
type BodyStyle int

// Supported token request encodings.
const (
	FormBody BodyStyle = iota
	JSONBody
)

// Option configures a Manager.
type Option func(*Manager)

// WithBodyStyle sets the token request encoding.
func WithBodyStyle(s BodyStyle) Option {
	return func(m *Manager) {
		m.style = s
	}
}

// WithClock sets the time source used for expiry.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithDefaultTTL sets the lifetime assumed when the response has no expires_in.
func WithDefaultTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.defaultTTL = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for the exchange.
func WithHTTPClient(d upstream.Doer) Option {
	return func(m *Manager) {
		if d != nil {
			m.http = d
		}
	}
}

// WithTimeout bounds a single token exchange.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
