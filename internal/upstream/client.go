package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sms-activation-tracker/internal/apierr"
	"sms-activation-tracker/internal/config"
	"sms-activation-tracker/pkg/logger"
)

// Upstream action names
const (
	ActionGetServices          = "getServicesList"
	ActionGetCountries         = "getCountries"
	ActionGetPrices            = "getPrices"
	ActionGetNumber            = "getNumberV2"
	ActionGetActiveActivations = "getActiveActivations"
	ActionGetStatus            = "getStatus"
	ActionSetStatus            = "setStatus"
	ActionGetBalance           = "getBalance"
)

const maxResponseBytes = 4 << 20

// Caller is the transport collaborator: one authenticated GET per action
type Caller interface {
	Call(ctx context.Context, action string, params url.Values) (string, error)
}

// Client calls the provider's handler API with query-string authentication
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logger.Logger
}

// NewClient creates a new upstream client
func NewClient(cfg *config.UpstreamConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		logger:  log,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// Call performs the GET request and returns the raw body text.
// It does not retry: a failed call surfaces to the caller of the tick.
func (c *Client) Call(ctx context.Context, action string, params url.Values) (string, error) {
	if c.apiKey == "" {
		return "", apierr.Auth("SMS API key is not configured", "NO_KEY")
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid upstream url: %w", err)
	}

	query := endpoint.Query()
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("api_key", c.apiKey)
	query.Set("action", action)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("User-Agent", "sms-activation-tracker/1.0")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithAction(action).Warn("Upstream request failed", "error", err)
		return "", apierr.TransientWrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", apierr.TransientWrap(err, "failed to read response")
	}

	c.logger.WithAction(action).Debug("Upstream call completed",
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	text := strings.TrimSpace(string(body))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apierr.Auth("upstream rejected the API key", text)
	case resp.StatusCode >= 500:
		return "", apierr.Transient(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), text)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		// Some errors arrive with 4xx and a sentinel body; let the normalizer read it.
		if text != "" {
			return text, nil
		}
		return "", apierr.Malformed(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), "")
	}

	return text, nil
}
