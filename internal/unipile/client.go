// internal/unipile/client.go
package unipile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unclebandit/outreach-backend/internal/config"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

const defaultRetryAfter = 30 * time.Second

// Profile is the subset of the provider's profile response we consume.
type Profile struct {
	ProviderID       string `json:"provider_id"`
	PublicIdentifier string `json:"public_identifier"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Headline         string `json:"headline"`
	// NetworkDistance is FIRST_DEGREE for existing connections.
	NetworkDistance string `json:"network_distance"`
	Invitation      *struct {
		Status string `json:"status"`
	} `json:"invitation,omitempty"`
}

// Client talks to the provider's per-region REST API. All calls go through a
// shared limiter so bulk passes can never trip the provider's abuse
// detection.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewClient(cfg config.UnipileConfig, log zerolog.Logger) *Client {
	base := cfg.DSN
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.Throttle), 1),
		log:     log,
	}
}

// GetProfile looks up a profile by vanity slug or provider id, constrained to
// the given sending account.
func (c *Client) GetProfile(ctx context.Context, identifier, accountID string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s?account_id=%s",
		c.baseURL, url.PathEscape(identifier), url.QueryEscape(accountID))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	// The provider returns 200 with partial bodies for some hidden
	// profiles; a missing provider_id is still a resolution failure.
	if profile.ProviderID == "" {
		return nil, appErrors.NewProfileNotFound(identifier)
	}
	return &profile, nil
}

// SendInvitation sends a connection request to a resolved provider id.
func (c *Client) SendInvitation(ctx context.Context, accountID, providerID, message string) error {
	payload := map[string]string{
		"account_id":  accountID,
		"provider_id": providerID,
		"message":     message,
	}
	_, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/users/invite", payload)
	return err
}

// SendMessage starts a chat with a connected provider id and sends text.
func (c *Client) SendMessage(ctx context.Context, accountID, providerID, text string) error {
	payload := map[string]any{
		"account_id":    accountID,
		"attendees_ids": []string{providerID},
		"text":          text,
	}
	_, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/chats", payload)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, appErrors.NewProfileNotFound(endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, appErrors.NewRateLimited(retryAfter(resp))
	case resp.StatusCode >= 400:
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Msg("provider call rejected")
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
