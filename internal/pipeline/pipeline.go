package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"autogram/internal/credentials"
	"autogram/internal/media"
	"autogram/internal/staging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage identifies where in a publish cycle the pipeline currently is. Stages
// are linear; Failed is terminal and reachable from any of them.
type Stage int

const (
	StageSelecting Stage = iota
	StageValidating
	StageStaging
	StageVerifyingURL
	StageBuildingCaption
	StagePublishing
	StageCleaningUp
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageSelecting:
		return "selecting"
	case StageValidating:
		return "validating"
	case StageStaging:
		return "staging"
	case StageVerifyingURL:
		return "verifying_url"
	case StageBuildingCaption:
		return "building_caption"
	case StagePublishing:
		return "publishing"
	case StageCleaningUp:
		return "cleaning_up"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrNotReachable is the verification failure: the staged asset's public URL
// did not answer the probe, so no publish attempt may be spent on it.
var ErrNotReachable = errors.New("staged asset is not publicly reachable")

// CycleError wraps a cycle failure with the stage it occurred in.
type CycleError struct {
	Stage Stage
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle failed at %s: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// MediaSource selects local media files and remembers rejected ones.
type MediaSource interface {
	SelectOne() (media.Item, error)
	Exclude(path string)
}

// Stager moves files to and from the public staging host.
type Stager interface {
	Stage(ctx context.Context, item media.Item) (staging.Asset, error)
	VerifyReachable(ctx context.Context, asset staging.Asset) bool
	Cleanup(ctx context.Context, asset staging.Asset)
}

// TokenSource yields a credential valid for the publish call.
type TokenSource interface {
	EnsureValid(ctx context.Context) (credentials.Credential, error)
}

// Publisher is the abstract publish API collaborator.
type Publisher interface {
	Publish(ctx context.Context, cred credentials.Credential, mediaURL, caption string, kind media.Kind) error
}

// CaptionTags supplies the hashtag suffix for captions.
type CaptionTags interface {
	Sample(n int) string
}

// Runner drives one publish cycle through the stage machine. Errors never
// escape RunCycle undiagnosed: every failure is logged with its stage and the
// cycle ends in Failed without touching the local file.
type Runner struct {
	media     MediaSource
	stager    Stager
	tokens    TokenSource
	publisher Publisher
	tags      CaptionTags
	tagCount  int
	limits    media.Limits
	logger    zerolog.Logger

	// removeFile deletes the local file after a successful publish.
	removeFile func(path string) error
}

func NewRunner(
	mediaSource MediaSource,
	stager Stager,
	tokens TokenSource,
	publisher Publisher,
	tags CaptionTags,
	tagCount int,
	limits media.Limits,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		media:      mediaSource,
		stager:     stager,
		tokens:     tokens,
		publisher:  publisher,
		tags:       tags,
		tagCount:   tagCount,
		limits:     limits,
		logger:     logger,
		removeFile: os.Remove,
	}
}

// RunCycle executes one complete publish cycle. The returned error is a
// *CycleError describing the failing stage; the caller treats any error as a
// completed (Failed) cycle and schedules the next one regardless.
func (r *Runner) RunCycle(ctx context.Context) error {
	log := r.logger.With().Str("cycle_id", uuid.NewString()).Logger()
	log.Info().Msg("starting publish cycle")

	final, err := r.run(ctx, log)
	if err != nil {
		log.Error().Err(err.Err).Str("stage", err.Stage.String()).Msg("publish cycle failed")
		return err
	}
	log.Info().Str("stage", final.String()).Msg("publish cycle complete")
	return nil
}

func (r *Runner) run(ctx context.Context, log zerolog.Logger) (Stage, *CycleError) {
	// Selecting
	item, err := r.media.SelectOne()
	if err != nil {
		return StageFailed, &CycleError{Stage: StageSelecting, Err: err}
	}
	log = log.With().Str("file", item.Path).Str("kind", item.Kind.String()).Logger()

	// Validating: the file may have changed between directory enumeration and
	// now, so re-check it against the limits before spending an upload.
	if err := r.validate(item); err != nil {
		r.media.Exclude(item.Path)
		return StageFailed, &CycleError{Stage: StageValidating, Err: err}
	}

	// Staging
	asset, err := r.stager.Stage(ctx, item)
	if err != nil {
		return StageFailed, &CycleError{Stage: StageStaging, Err: err}
	}
	// The remote copy is removed no matter how the rest of the cycle ends.
	defer r.stager.Cleanup(ctx, asset)

	// VerifyingURL
	if !r.stager.VerifyReachable(ctx, asset) {
		return StageFailed, &CycleError{Stage: StageVerifyingURL, Err: ErrNotReachable}
	}

	// BuildingCaption
	caption := r.buildCaption(item)
	log.Debug().Str("caption", caption).Msg("caption built")

	// Publishing
	cred, err := r.tokens.EnsureValid(ctx)
	if err != nil {
		return StageFailed, &CycleError{Stage: StagePublishing, Err: err}
	}
	if err := r.publisher.Publish(ctx, cred, asset.RemoteURL, caption, item.Kind); err != nil {
		// Local file is preserved for manual inspection.
		return StageFailed, &CycleError{Stage: StagePublishing, Err: err}
	}

	// CleaningUp: the post is live, so losing the local copy is acceptable; a
	// failed delete is only a warning.
	if err := r.removeFile(item.Path); err != nil {
		log.Warn().Err(err).Msg("failed to delete local file after publish")
	}

	return StageDone, nil
}

func (r *Runner) validate(item media.Item) error {
	info, err := os.Stat(item.Path)
	if err != nil {
		return fmt.Errorf("media file unavailable: %w", err)
	}
	if max := r.limits.Max(item.Kind); max > 0 && info.Size() > max {
		return fmt.Errorf("%s is %d bytes, exceeds %s limit of %d", item.Path, info.Size(), item.Kind, max)
	}
	return nil
}

func (r *Runner) buildCaption(item media.Item) string {
	tags := r.tags.Sample(r.tagCount)
	if tags == "" {
		return item.CaptionSeed
	}
	return item.CaptionSeed + "\n\n" + tags
}
