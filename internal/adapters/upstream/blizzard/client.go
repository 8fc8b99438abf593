// Package blizzard fetches character profile documents from the Blizzard
// World of Warcraft profile API.
package blizzard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/logger"
)

// Default Blizzard API configuration constants.
const (
	Provider         = "blizzard"
	DefaultBaseURL   = "https://eu.api.blizzard.com"
	DefaultTokenURL  = "https://oauth.battle.net/token"
	DefaultNamespace = "profile-eu"
	DefaultLocale    = "en_GB"
)

// Client is the profile provider client.
type Client struct {
	baseURL   string
	namespace string
	locale    string
	tokens    upstream.TokenSource
	http      *upstream.Client
	logger    logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithNamespace sets the namespace query parameter.
func WithNamespace(ns string) Option {
	return func(c *Client) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithLocale sets the locale query parameter.
func WithLocale(l string) Option {
	return func(c *Client) {
		if l != "" {
			c.locale = l
		}
	}
}

// WithUpstream sets the HTTP executor.
func WithUpstream(u *upstream.Client) Option {
	return func(c *Client) {
		if u != nil {
			c.http = u
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a profile client authenticated by tokens.
func NewClient(tokens upstream.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		namespace: DefaultNamespace,
		locale:    DefaultLocale,
		tokens:    tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named(Provider)
	}
	if c.http == nil {
		c.http = upstream.NewClient(Provider, upstream.WithLogger(c.logger))
	}
	return c
}

// Profile returns the raw character profile document.
func (c *Client) Profile(ctx context.Context, realm, name string) (json.RawMessage, error) {
	return c.get(ctx, c.characterPath(realm, name))
}

// MythicKeystoneProfile returns the raw mythic keystone profile document.
// A 404 surfaces as *upstream.StatusError; callers treat it as "no rating".
func (c *Client) MythicKeystoneProfile(ctx context.Context, realm, name string) (json.RawMessage, error) {
	return c.get(ctx, c.characterPath(realm, name)+"/mythic-keystone-profile")
}

func (c *Client) characterPath(realm, name string) string {
	id := model.CharacterIdentifier{Realm: realm, Name: name}
	return fmt.Sprintf("/profile/wow/character/%s/%s", url.PathEscape(id.RealmSlug()), url.PathEscape(id.LowerName()))
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("%s: build url: %w", Provider, err)
	}
	q := u.Query()
	q.Set("namespace", c.namespace)
	q.Set("locale", c.locale)
	u.RawQuery = q.Encode()
	target := u.String()

	body, err := c.http.DoAuthorized(ctx, c.tokens, func(ctx context.Context, token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		upstream.SetBearer(req, token)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &upstream.MalformedError{Provider: Provider, Reason: "invalid json from " + path}
	}
	return json.RawMessage(body), nil
}
