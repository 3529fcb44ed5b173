package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the configuration for connecting to a tariffdesk server.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// Client is a pure HTTP client for the tariffdesk API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the server.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the server and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

func sessionPath(sessionID string, parts ...string) string {
	p := "/v1/editor/sessions/" + url.PathEscape(sessionID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// OpenSession starts an editor session over the current tariffs document.
func (c *Client) OpenSession(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/editor/sessions", nil)
}

// GetSession returns the session's working collection.
func (c *Client) GetSession(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, sessionPath(sessionID), nil)
}

// AddTariff appends a blank tariff with one default plan.
func (c *Client) AddTariff(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, sessionPath(sessionID, "tariffs"), nil)
}

// RemoveTariff removes a tariff by key. Unknown keys are not an error.
func (c *Client) RemoveTariff(ctx context.Context, sessionID, tariffKey string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodDelete, sessionPath(sessionID, "tariffs", tariffKey), nil)
}

// UpdateTariff applies the given fields (id, title, subtitle).
func (c *Client) UpdateTariff(ctx context.Context, sessionID, tariffKey string, patch map[string]string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPatch, sessionPath(sessionID, "tariffs", tariffKey), patch)
}

// AddPlan appends a default plan to a tariff.
func (c *Client) AddPlan(ctx context.Context, sessionID, tariffKey string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, sessionPath(sessionID, "tariffs", tariffKey, "plans"), nil)
}

// RemovePlan removes a plan by key.
func (c *Client) RemovePlan(ctx context.Context, sessionID, tariffKey, planKey string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodDelete, sessionPath(sessionID, "tariffs", tariffKey, "plans", planKey), nil)
}

// UpdatePlan applies the given fields (name, price, features text).
func (c *Client) UpdatePlan(ctx context.Context, sessionID, tariffKey, planKey string, patch map[string]string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPatch, sessionPath(sessionID, "tariffs", tariffKey, "plans", planKey), patch)
}

// Output returns the serialized tariffs document for the session.
func (c *Client) Output(ctx context.Context, sessionID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, sessionPath(sessionID, "output"), nil)
}

// GetPublicTariff returns a published tariff by id.
func (c *Client) GetPublicTariff(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/tariffs/"+url.PathEscape(id), nil)
}
