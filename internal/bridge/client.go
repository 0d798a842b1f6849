package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const checkPath = "/api/db/check"

// Client executes authenticated connectivity checks against the DB bridging
// service. The bridge runs outside this process and performs the real
// database connection on our behalf.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) (*Client, error) {
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New("bridge token is required")
	}
	return &Client{
		baseURL:    normalized,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// WithHTTPClient overrides the default http.Client. Primarily useful for testing.
func (c *Client) WithHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

type CheckRequest struct {
	URI        string         `json:"uri"`
	Database   string         `json:"database"`
	Collection string         `json:"collection"`
	Operation  string         `json:"operation"`
	Query      map[string]any `json:"query"`
}

type CheckResponse struct {
	Status         string `json:"status"`
	ResponseTimeMS int64  `json:"responseTimeMs"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// OK reports whether the bridge considered the connection healthy.
func (r *CheckResponse) OK() bool {
	return r.Status == "success" || r.Status == "ok"
}

// CheckConnection asks the bridge to open a real connection to the database
// named in req. A transport-level error means the bridge itself is
// unreachable; callers must degrade to a syntax-only check in that case.
func (c *Client) CheckConnection(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal check request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create check request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bridge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	var out CheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode bridge response: %w", err)
	}
	return &out, nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("bridge base URL is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid bridge base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid bridge base URL: %s", raw)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimSuffix(parsed.String(), "/"), nil
}
