package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	service "github.com/okian/armory/internal/app"
	"github.com/okian/armory/internal/domain/model"
)

// Client talks to the overview API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// Team fetches the overviews of a named team.
func (c *Client) Team(ctx context.Context, team, region string) (service.BatchResult, error) {
	u := c.baseURL + "/api/characters/overview/" + url.PathEscape(team)
	if region != "" {
		u += "?region=" + url.QueryEscape(region)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return service.BatchResult{}, err
	}
	return c.batch(req)
}

// Batch fetches the overviews of an ad-hoc list.
func (c *Client) Batch(ctx context.Context, ids []model.CharacterIdentifier, region string) (service.BatchResult, error) {
	body, err := json.Marshal(map[string]any{"region": region, "characters": ids})
	if err != nil {
		return service.BatchResult{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/characters/overview", bytes.NewReader(body))
	if err != nil {
		return service.BatchResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.batch(req)
}

func (c *Client) batch(req *http.Request) (service.BatchResult, error) {
	body, err := c.do(req)
	if err != nil {
		return service.BatchResult{}, err
	}
	var res service.BatchResult
	if err := json.Unmarshal(body, &res); err != nil {
		return service.BatchResult{}, fmt.Errorf("decode response: %w", err)
	}
	return res, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorBody
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			return nil, fmt.Errorf("%w: %d %s: %s", ErrServer, resp.StatusCode, e.Code, e.Message)
		}
		return nil, fmt.Errorf("%w: %d", ErrServer, resp.StatusCode)
	}
	return body, nil
}
