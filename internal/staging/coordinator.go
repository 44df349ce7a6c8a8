package staging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"autogram/internal/media"
	"autogram/internal/retry"

	"github.com/rs/zerolog"
)

// Transfer moves files to and from the public staging host. Implementations
// own the concrete transfer protocol.
type Transfer interface {
	Upload(ctx context.Context, localPath, remoteName string) error
	Delete(ctx context.Context, remoteName string) error
}

// Asset is a file staged on the public host for one publish cycle.
type Asset struct {
	RemoteURL  string
	RemotePath string
	Source     media.Item
}

// UploadError wraps a staging upload failure after retries were exhausted.
type UploadError struct {
	RemoteName string
	Err        error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("staging upload of %s failed: %v", e.RemoteName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

const (
	uploadAttempts = 3
	uploadBackoff  = 5 * time.Second
	probeTimeout   = 30 * time.Second
)

// Coordinator stages local files on the public host, probes their
// reachability, and removes them once a cycle ends.
type Coordinator struct {
	transfer      Transfer
	publicBaseURL string
	httpClient    *http.Client
	logger        zerolog.Logger

	attempts int
	backoff  time.Duration
}

func NewCoordinator(transfer Transfer, publicBaseURL string, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		transfer:      transfer,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: probeTimeout},
		logger:        logger,
		attempts:      uploadAttempts,
		backoff:       uploadBackoff,
	}
}

// Stage uploads the item under a sanitized name, retrying transient transfer
// failures before giving up.
func (c *Coordinator) Stage(ctx context.Context, item media.Item) (Asset, error) {
	remoteName := media.SanitizeFilename(filepath.Base(item.Path))

	c.logger.Info().
		Str("local", item.Path).
		Str("remote", remoteName).
		Msg("staging upload")

	err := retry.Do(ctx, c.attempts, c.backoff, func() error {
		return c.transfer.Upload(ctx, item.Path, remoteName)
	})
	if err != nil {
		return Asset{}, &UploadError{RemoteName: remoteName, Err: err}
	}

	return Asset{
		RemoteURL:  c.publicBaseURL + "/" + url.PathEscape(remoteName),
		RemotePath: remoteName,
		Source:     item,
	}, nil
}

// VerifyReachable probes the asset's public URL with a HEAD request. The
// publish API fetches media by URL, so an unreachable asset must stop the
// cycle before any publish attempt is spent.
func (c *Coordinator) VerifyReachable(ctx context.Context, asset Asset) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, asset.RemoteURL, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", asset.RemoteURL).Msg("reachability probe request failed")
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", asset.RemoteURL).Msg("reachability probe failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("url", asset.RemoteURL).
			Msg("staged asset not reachable")
		return false
	}

	c.logger.Debug().
		Str("url", asset.RemoteURL).
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("staged asset reachable")
	return true
}

// Cleanup removes the staged copy, best-effort. Failures are logged and never
// returned: a leftover remote file must not block the next cycle.
func (c *Coordinator) Cleanup(ctx context.Context, asset Asset) {
	if err := c.transfer.Delete(ctx, asset.RemotePath); err != nil {
		c.logger.Warn().Err(err).Str("remote", asset.RemotePath).Msg("failed to delete staged asset")
		return
	}
	c.logger.Debug().Str("remote", asset.RemotePath).Msg("staged asset deleted")
}
