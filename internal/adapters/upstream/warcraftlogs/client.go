// Package warcraftlogs queries the Warcraft Logs GraphQL API for raid performance.
package warcraftlogs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/armory/internal/adapters/upstream"
	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/logger"
)

// Default Warcraft Logs configuration constants.
const (
	Provider        = "warcraftlogs"
	DefaultAPIURL   = "https://www.warcraftlogs.com/api/v2/client"
	DefaultTokenURL = "https://www.warcraftlogs.com/oauth/token"
	DefaultZoneID   = 42
)

// zoneRankingsQuery takes every user-supplied value as a variable.
const zoneRankingsQuery = `query CharacterZoneRankings($name: String!, $serverSlug: String!, $serverRegion: String!, $zoneID: Int!) {
  characterData {
    character(name: $name, serverSlug: $serverSlug, serverRegion: $serverRegion) {
      zoneRankings(zoneID: $zoneID)
    }
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data *struct {
		CharacterData *struct {
			Character *struct {
				ZoneRankings json.RawMessage `json:"zoneRankings"`
			} `json:"character"`
		} `json:"characterData"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Client is the performance provider client.
type Client struct {
	apiURL string
	tokens upstream.TokenSource
	http   *upstream.Client
	logger logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL sets the GraphQL endpoint.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.apiURL = u
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

// NewClient creates a performance client authenticated by tokens.
func NewClient(tokens upstream.TokenSource, opts ...Option) *Client {
	c := &Client{apiURL: DefaultAPIURL, tokens: tokens}
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

// ZoneRankings returns the character's rankings for zoneID. Characters the
// provider has not indexed yield the zero value, not an error.
func (c *Client) ZoneRankings(ctx context.Context, name, realm, region string, zoneID int) (model.ZoneRankings, error) {
	payload, err := json.Marshal(graphQLRequest{
		Query: zoneRankingsQuery,
		Variables: map[string]any{
			"name":         name,
			"serverSlug":   model.RealmSlug(realm),
			"serverRegion": strings.ToLower(strings.TrimSpace(region)),
			"zoneID":       zoneID,
		},
	})
	if err != nil {
		return model.ZoneRankings{}, fmt.Errorf("%s: encode query: %w", Provider, err)
	}

	body, err := c.http.DoAuthorized(ctx, c.tokens, func(ctx context.Context, token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		upstream.SetBearer(req, token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return model.ZoneRankings{}, err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.ZoneRankings{}, malformed("graphql envelope", err)
	}

	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		if resp.Data == nil {
			return model.ZoneRankings{}, &QueryError{Messages: msgs}
		}
		c.logger.Warn(ctx, "partial graphql errors",
			logger.String("character", name),
			logger.Any("errors", msgs))
	}

	if resp.Data == nil || resp.Data.CharacterData == nil || resp.Data.CharacterData.Character == nil {
		c.logger.Debug(ctx, "character not indexed", logger.String("character", name), logger.String("realm", realm))
		return model.ZoneRankings{}, nil
	}
	return DecodeZoneRankings(resp.Data.CharacterData.Character.ZoneRankings)
}
