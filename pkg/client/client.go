// Package client provides the public Go SDK for the EV assistant API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const chatPath = "/api/v1/chat"

// ErrSessionNotFound is returned when the server does not know the session.
var ErrSessionNotFound = errors.New("session not found")

// Client talks to a running ev-assistant-api.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new EV assistant client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8090"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
	}
}

// ChatResponse is the reply to one message.
type ChatResponse struct {
	SessionID string `json:"sessionId"`
	Intent    string `json:"intent"`
	Reply     string `json:"reply"`
}

// ReadyResponse reports server readiness.
type ReadyResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Rows   int    `json:"rows"`
}

// Dashboard is the dataset summary served by the API.
type Dashboard struct {
	TotalModels      int          `json:"totalModels"`
	AvgBatteryKWh    float64      `json:"avgBatteryKwh"`
	AvgRangeKm       float64      `json:"avgRangeKm"`
	ModelAvailable   bool         `json:"modelAvailable"`
	TopBrands        []BrandCount `json:"topBrands"`
	BrandAvgRange    []BrandRange `json:"brandAvgRange"`
	BatteryHistogram []Bucket     `json:"batteryHistogram"`
}

// BrandCount is the number of models of one brand.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// BrandRange is the average range of one brand.
type BrandRange struct {
	Brand      string  `json:"brand"`
	AvgRangeKm float64 `json:"avgRangeKm"`
}

// Bucket is one battery histogram bin.
type Bucket struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ev-assistant api: %d %s", e.StatusCode, e.Message)
}

// Chat sends a message. An empty sessionID lets the server open a session;
// the returned response carries its ID.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (*ChatResponse, error) {
	body := map[string]string{"message": message}
	if sessionID != "" {
		body["sessionId"] = sessionID
	}

	var out ChatResponse
	if err := c.do(ctx, http.MethodPost, chatPath, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard fetches the dataset summary.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var out Dashboard
	if err := c.do(ctx, http.MethodGet, "/api/v1/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ready checks that the server has loaded its dataset.
func (c *Client) Ready(ctx context.Context) (*ReadyResponse, error) {
	var out ReadyResponse
	if err := c.do(ctx, http.MethodGet, "/ready", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: e.Error}
		if resp.StatusCode == http.StatusNotFound && path == chatPath {
			return fmt.Errorf("%w: %w", ErrSessionNotFound, apiErr)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
