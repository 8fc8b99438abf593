// Package oauth caches client-credentials bearer tokens for one upstream provider.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/pkg/logger"
	"github.com/okian/armory/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Default token manager configuration constants.
const (
	DefaultTTL      = 15 * time.Minute
	maxTokenBody    = 1 << 20
	refreshFlightID = "token"
)

// Credentials is a client id/secret pair.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Token is a cached bearer credential.
type Token struct {
	Value      string
	ObtainedAt time.Time
	ExpiresAt  time.Time
}

// Valid reports whether the token can still be used at now.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Manager acquires and caches one bearer token. Concurrent callers facing a
// missing or expired token share a single exchange.
type Manager struct {
	provider   string
	tokenURL   string
	creds      Credentials
	style      BodyStyle
	http       upstream.Doer
	clock      clockwork.Clock
	defaultTTL time.Duration
	timeout    time.Duration
	logger     logger.Logger

	mu    sync.RWMutex
	token Token
	group singleflight.Group
}

// NewManager creates a token manager for provider.
func NewManager(provider, tokenURL string, creds Credentials, opts ...Option) *Manager {
	m := &Manager{
		provider:   provider,
		tokenURL:   tokenURL,
		creds:      creds,
		style:      FormBody,
		http:       http.DefaultClient,
		clock:      clockwork.NewRealClock(),
		defaultTTL: DefaultTTL,
		timeout:    upstream.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("oauth").With(logger.String("provider", provider))
	}
	return m
}

// Token returns the cached token, exchanging credentials when it is missing or expired.
func (m *Manager) Token(ctx context.Context) (Token, error) {
	if t, ok := m.cached(); ok {
		return t, nil
	}

	// The exchange runs detached so one caller giving up does not fail the others.
	ch := m.group.DoChan(refreshFlightID, func() (interface{}, error) {
		if t, ok := m.cached(); ok {
			return t, nil
		}
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

// AccessToken returns only the token value.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	t, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	return t.Value, nil
}

// Invalidate drops the cached token if it still equals value, so a token
// refreshed meanwhile by another caller survives.
func (m *Manager) Invalidate(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token.Value == value {
		m.token = Token{}
	}
}

func (m *Manager) cached() (Token, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token.Valid(m.clock.Now())
}

func (m *Manager) refresh(ctx context.Context) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.exchange(ctx)
	if err != nil {
		metrics.RecordTokenRefresh(m.provider, "error")
		m.logger.Error(ctx, "token exchange failed", logger.Error(err))
		return Token{}, err
	}

	now := m.clock.Now()
	ttl := m.defaultTTL
	if resp.ExpiresIn > 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}
	t := Token{Value: resp.AccessToken, ObtainedAt: now, ExpiresAt: now.Add(ttl)}

	m.mu.Lock()
	m.token = t
	m.mu.Unlock()

	metrics.RecordTokenRefresh(m.provider, "ok")
	m.logger.Info(ctx, "token acquired", logger.Duration("ttl", ttl))
	return t, nil
}

func (m *Manager) exchange(ctx context.Context) (tokenResponse, error) {
	req, err := m.newRequest(ctx)
	if err != nil {
		return tokenResponse{}, &upstream.TokenError{Provider: m.provider, Err: err}
	}

	resp, err := m.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = &upstream.TimeoutError{Provider: m.provider, Timeout: m.timeout, Err: err}
		}
		return tokenResponse{}, &upstream.TokenError{Provider: m.provider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return tokenResponse{}, &upstream.TokenError{Provider: m.provider, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return tokenResponse{}, &upstream.TokenError{Provider: m.provider, Status: resp.StatusCode, Body: upstream.Truncate(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		if err == nil {
			err = errors.New("access_token missing")
		}
		return tokenResponse{}, &upstream.TokenError{Provider: m.provider, Status: resp.StatusCode, Body: upstream.Truncate(body), Err: err}
	}
	return tr, nil
}

func (m *Manager) newRequest(ctx context.Context) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch m.style {
	case JSONBody:
		b, err := json.Marshal(map[string]string{"grant_type": "client_credentials"})
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(b), "application/json"
	default:
		form := url.Values{"grant_type": {"client_credentials"}}
		body, contentType = strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(m.creds.ClientID, m.creds.ClientSecret)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
