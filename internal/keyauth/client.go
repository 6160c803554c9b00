// Package keyauth wraps the external key-authority seller API. The client
// holds no local state; every call is a fresh outbound request with a hard
// timeout and no retries, so upstream trouble surfaces fast.
package keyauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sorynauth/internal/config"
)

// KeyStatus is the upstream-reported state of a license key.
type KeyStatus string

const (
	StatusActive  KeyStatus = "active"
	StatusBanned  KeyStatus = "banned"
	StatusExpired KeyStatus = "expired"
)

// Sentinel errors for the typed outcomes callers branch on.
var (
	// ErrUpstreamUnavailable covers network failures and timeouts.
	ErrUpstreamUnavailable = errors.New("key authority unavailable")
	// ErrUpstreamMalformed covers responses whose shape cannot be trusted.
	ErrUpstreamMalformed = errors.New("key authority returned malformed response")
)

// InvalidKeyError reports that the upstream does not recognize the key.
type InvalidKeyError struct {
	Message string
}

func (e *InvalidKeyError) Error() string {
	if e.Message == "" {
		return "invalid key"
	}
	return e.Message
}

// ActivationError reports an upstream activation rejection.
type ActivationError struct {
	Message string
}

func (e *ActivationError) Error() string {
	if e.Message == "" {
		return "activation failed"
	}
	return e.Message
}

// Info is the validated view of an upstream key-info response.
type Info struct {
	Status          KeyStatus
	BoundHardwareID string
}

// Bound reports whether the key is already bound to some hardware.
func (i *Info) Bound() bool {
	return i.BoundHardwareID != ""
}

// Client talks to the key-authority seller API.
type Client struct {
	baseURL    string
	sellerKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a key-authority client from configuration.
func NewClient(cfg config.KeyAuthConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		sellerKey: cfg.SellerKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With(slog.String("component", "keyauth")),
	}
}

// sellerResponse is the raw seller API envelope. All fields are untrusted
// until shape-checked.
type sellerResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Status  string `json:"status"`
	UsedBy  string `json:"usedby"`
}

// KeyInfo queries the upstream for the key's status and hardware binding.
func (c *Client) KeyInfo(ctx context.Context, key string) (*Info, error) {
	resp, err := c.call(ctx, url.Values{
		"type": {"info"},
		"key":  {key},
	})
	if err != nil {
		return nil, err
	}

	if resp.Success == nil {
		c.logger.ErrorContext(ctx, "Key info response missing success field",
			slog.String("key_prefix", keyPrefix(key)))
		return nil, ErrUpstreamMalformed
	}

	if !*resp.Success {
		// The seller API reports unknown keys as a plain failure with a
		// message rather than a distinct status.
		c.logger.WarnContext(ctx, "Key info lookup rejected by upstream",
			slog.String("key_prefix", keyPrefix(key)),
			slog.String("message", resp.Message))
		return nil, &InvalidKeyError{Message: resp.Message}
	}

	info := &Info{
		BoundHardwareID: resp.UsedBy,
	}

	switch strings.ToLower(resp.Status) {
	case "banned":
		info.Status = StatusBanned
	case "expired":
		info.Status = StatusExpired
	default:
		info.Status = StatusActive
	}

	return info, nil
}

// Activate binds the key to hardwareID in the external system. Callers must
// only invoke this for unbound keys; activating an already-bound key is not
// idempotent upstream.
func (c *Client) Activate(ctx context.Context, key, hardwareID string) error {
	resp, err := c.call(ctx, url.Values{
		"type": {"activate"},
		"key":  {key},
		"user": {hardwareID},
	})
	if err != nil {
		return err
	}

	if resp.Success == nil {
		c.logger.ErrorContext(ctx, "Activation response missing success field",
			slog.String("key_prefix", keyPrefix(key)))
		return ErrUpstreamMalformed
	}

	if !*resp.Success {
		c.logger.WarnContext(ctx, "Activation rejected by upstream",
			slog.String("key_prefix", keyPrefix(key)),
			slog.String("message", resp.Message))
		return &ActivationError{Message: resp.Message}
	}

	c.logger.InfoContext(ctx, "License activated upstream",
		slog.String("key_prefix", keyPrefix(key)))
	return nil
}

// call performs one seller API request and shape-checks the response body.
func (c *Client) call(ctx context.Context, params url.Values) (*sellerResponse, error) {
	params.Set("sellerkey", c.sellerKey)

	reqURL := c.baseURL
	if strings.Contains(reqURL, "?") {
		reqURL += "&" + params.Encode()
	} else {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Soryn-Auth-Backend/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Key authority request failed",
			slog.String("type", params.Get("type")),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "Key authority returned error status",
			slog.String("type", params.Get("type")),
			slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var parsed sellerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.ErrorContext(ctx, "Failed to parse key authority response",
			slog.String("type", params.Get("type")),
			slog.String("error", err.Error()))
		return nil, ErrUpstreamMalformed
	}

	return &parsed, nil
}

// keyPrefix returns a loggable prefix of a license key. Full keys never
// reach the logs.
func keyPrefix(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
