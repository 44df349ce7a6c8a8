package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autogram/internal/credentials"
	"autogram/internal/media"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the Graph API endpoint prefix.
const DefaultBaseURL = "https://graph.facebook.com/v19.0"

// longLivedTokenTTL is the documented lifetime of a long-lived token when the
// API response omits expires_in.
const longLivedTokenTTL = 60 * 24 * time.Hour

// Config holds the publish API application settings.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AccountID string

	// Videos need server-side processing between container creation and
	// publish; the wait is randomized within these bounds.
	ProcessingDelayMin time.Duration
	ProcessingDelayMax time.Duration
}

// APIError is a non-2xx or error-body response from the publish API.
type APIError struct {
	Operation string
	Status    int
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("publish api %s failed (status %d): %s", e.Operation, e.Status, e.Message)
}

// Client talks to the Instagram Graph API: token exchange/refresh and media
// publishing. Images become a feed post plus a story; videos become a reel.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type containerResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Exchange trades a short-lived authorization token for a long-lived
// credential. Used by the one-time setup flow.
func (c *Client) Exchange(ctx context.Context, shortLivedToken string) (credentials.Credential, error) {
	return c.exchangeToken(ctx, shortLivedToken)
}

// Refresh exchanges the current credential for a fresh long-lived one.
func (c *Client) Refresh(ctx context.Context, cred credentials.Credential) (credentials.Credential, error) {
	return c.exchangeToken(ctx, cred.Value)
}

func (c *Client) exchangeToken(ctx context.Context, token string) (credentials.Credential, error) {
	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {c.cfg.AppID},
		"client_secret":     {c.cfg.AppSecret},
		"fb_exchange_token": {token},
	}

	endpoint := c.cfg.BaseURL + "/oauth/access_token?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("failed to build token exchange request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("failed to read token exchange response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return credentials.Credential{}, &APIError{Operation: "token exchange", Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return credentials.Credential{}, fmt.Errorf("failed to decode token exchange response: %w", err)
	}
	if tr.AccessToken == "" {
		return credentials.Credential{}, &APIError{Operation: "token exchange", Status: resp.StatusCode, Message: "response has no access_token"}
	}

	now := c.now()
	ttl := longLivedTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}

	return credentials.Credential{
		Value:       tr.AccessToken,
		ExpiresAt:   now.Add(ttl),
		RefreshedAt: now,
	}, nil
}

// Publish pushes the staged media URL to the account. The media kind is
// consulted here, once, to pick the container parameters; callers stay
// kind-agnostic.
func (c *Client) Publish(ctx context.Context, cred credentials.Credential, mediaURL, caption string, kind media.Kind) error {
	if kind == media.KindVideo {
		return c.publishVideo(ctx, cred, mediaURL, caption)
	}
	return c.publishImage(ctx, cred, mediaURL, caption)
}

func (c *Client) publishImage(ctx context.Context, cred credentials.Credential, mediaURL, caption string) error {
	c.logger.Info().Str("url", mediaURL).Msg("publishing image post")
	containerID, err := c.createContainer(ctx, cred, url.Values{
		"image_url": {mediaURL},
		"caption":   {caption},
	})
	if err != nil {
		return err
	}
	if err := c.publishContainer(ctx, cred, containerID); err != nil {
		return err
	}

	c.logger.Info().Str("url", mediaURL).Msg("publishing story")
	storyID, err := c.createContainer(ctx, cred, url.Values{
		"image_url":  {mediaURL},
		"media_type": {"STORIES"},
	})
	if err != nil {
		return err
	}
	return c.publishContainer(ctx, cred, storyID)
}

func (c *Client) publishVideo(ctx context.Context, cred credentials.Credential, mediaURL, caption string) error {
	c.logger.Info().Str("url", mediaURL).Msg("publishing reel")
	containerID, err := c.createContainer(ctx, cred, url.Values{
		"video_url":  {mediaURL},
		"caption":    {caption},
		"media_type": {"REELS"},
	})
	if err != nil {
		return err
	}

	// The container is not publishable until server-side transcoding is done.
	delay := c.processingDelay()
	c.logger.Debug().Dur("delay", delay).Msg("waiting for video processing")
	c.sleep(ctx, delay)
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.publishContainer(ctx, cred, containerID)
}

func (c *Client) processingDelay() time.Duration {
	min, max := c.cfg.ProcessingDelayMin, c.cfg.ProcessingDelayMax
	if min <= 0 {
		min = time.Minute
	}
	if max <= min {
		return min
	}
	return min + time.Duration(c.now().UnixNano())%(max-min)
}

func (c *Client) createContainer(ctx context.Context, cred credentials.Credential, params url.Values) (string, error) {
	params.Set("access_token", cred.Value)
	endpoint := fmt.Sprintf("%s/%s/media", c.cfg.BaseURL, c.cfg.AccountID)

	var cr containerResponse
	status, err := c.postForm(ctx, endpoint, params, &cr)
	if err != nil {
		return "", err
	}
	if cr.Error != nil {
		return "", &APIError{Operation: "container create", Status: status, Message: cr.Error.Message}
	}
	if cr.ID == "" {
		return "", &APIError{Operation: "container create", Status: status, Message: "response has no container id"}
	}
	return cr.ID, nil
}

func (c *Client) publishContainer(ctx context.Context, cred credentials.Credential, containerID string) error {
	endpoint := fmt.Sprintf("%s/%s/media_publish", c.cfg.BaseURL, c.cfg.AccountID)
	params := url.Values{
		"access_token": {cred.Value},
		"creation_id":  {containerID},
	}

	var cr containerResponse
	status, err := c.postForm(ctx, endpoint, params, &cr)
	if err != nil {
		return err
	}
	if cr.Error != nil {
		return &APIError{Operation: "container publish", Status: status, Message: cr.Error.Message}
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return 0, fmt.Errorf("failed to build publish api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("publish api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read publish api response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode publish api response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
