package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"autogram/internal/credentials"
	"autogram/internal/media"
	"autogram/internal/staging"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMedia struct {
	item     media.Item
	err      error
	excluded []string
}

func (f *fakeMedia) SelectOne() (media.Item, error) { return f.item, f.err }
func (f *fakeMedia) Exclude(path string)            { f.excluded = append(f.excluded, path) }

type fakeStager struct {
	stageErr    error
	staged      int
	reachable   bool
	verified    int
	cleanedUp   []staging.Asset
	stagedAsset staging.Asset
}

func (f *fakeStager) Stage(_ context.Context, item media.Item) (staging.Asset, error) {
	f.staged++
	if f.stageErr != nil {
		return staging.Asset{}, f.stageErr
	}
	f.stagedAsset = staging.Asset{
		RemoteURL:  "https://cdn.example.com/" + filepath.Base(item.Path),
		RemotePath: filepath.Base(item.Path),
		Source:     item,
	}
	return f.stagedAsset, nil
}

func (f *fakeStager) VerifyReachable(context.Context, staging.Asset) bool {
	f.verified++
	return f.reachable
}

func (f *fakeStager) Cleanup(_ context.Context, asset staging.Asset) {
	f.cleanedUp = append(f.cleanedUp, asset)
}

type fakeTokens struct {
	cred credentials.Credential
	err  error
}

func (f *fakeTokens) EnsureValid(context.Context) (credentials.Credential, error) {
	return f.cred, f.err
}

type fakePublisher struct {
	err      error
	calls    int
	lastURL  string
	lastCap  string
	lastKind media.Kind
}

func (f *fakePublisher) Publish(_ context.Context, _ credentials.Credential, mediaURL, caption string, kind media.Kind) error {
	f.calls++
	f.lastURL = mediaURL
	f.lastCap = caption
	f.lastKind = kind
	return f.err
}

type fixedTags struct{ tags string }

func (f fixedTags) Sample(int) string { return f.tags }

type env struct {
	media     *fakeMedia
	stager    *fakeStager
	tokens    *fakeTokens
	publisher *fakePublisher
	runner    *Runner
	localPath string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	localPath := filepath.Join(dir, "sunset_2.jpg")
	require.NoError(t, os.WriteFile(localPath, make([]byte, 100), 0644))

	e := &env{
		media: &fakeMedia{item: media.Item{
			Path:        localPath,
			Kind:        media.KindImage,
			SizeBytes:   100,
			CaptionSeed: "sunset",
		}},
		stager:    &fakeStager{reachable: true},
		tokens:    &fakeTokens{cred: credentials.Credential{Value: "tok"}},
		publisher: &fakePublisher{},
		localPath: localPath,
	}
	e.runner = NewRunner(
		e.media, e.stager, e.tokens, e.publisher,
		fixedTags{"#beach #sky"}, 2,
		media.Limits{MaxImageBytes: 1024, MaxVideoBytes: 4096},
		zerolog.Nop(),
	)
	return e
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunCycleSuccess(t *testing.T) {
	e := newEnv(t)

	err := e.runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, e.publisher.calls)
	assert.Equal(t, "https://cdn.example.com/sunset_2.jpg", e.publisher.lastURL)
	assert.Equal(t, "sunset\n\n#beach #sky", e.publisher.lastCap)
	assert.Equal(t, media.KindImage, e.publisher.lastKind)

	assert.False(t, fileExists(e.localPath), "local file must be deleted after successful publish")
	require.Len(t, e.stager.cleanedUp, 1, "remote staged copy must be cleaned up")
}

func TestRunCycleNoEligibleMedia(t *testing.T) {
	e := newEnv(t)
	e.media.err = media.ErrNoEligibleMedia

	err := e.runner.RunCycle(context.Background())

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, StageSelecting, cycleErr.Stage)
	assert.ErrorIs(t, err, media.ErrNoEligibleMedia)

	assert.Zero(t, e.stager.staged, "no staging call for empty directory")
	assert.Zero(t, e.publisher.calls, "no publish call for empty directory")
}

func TestRunCycleValidationFailureExcludesFile(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.Truncate(e.localPath, 5000)) // now over the image cap

	err := e.runner.RunCycle(context.Background())

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, StageValidating, cycleErr.Stage)
	assert.Equal(t, []string{e.localPath}, e.media.excluded)
	assert.True(t, fileExists(e.localPath), "rejected file must not be deleted")
	assert.Zero(t, e.stager.staged)
}

func TestRunCycleStagingFailurePreservesLocalFile(t *testing.T) {
	e := newEnv(t)
	e.stager.stageErr = &staging.UploadError{RemoteName: "sunset_2.jpg", Err: errors.New("transfer failed")}

	err := e.runner.RunCycle(context.Background())

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, StageStaging, cycleErr.Stage)
	assert.True(t, fileExists(e.localPath))
	assert.Empty(t, e.stager.cleanedUp, "nothing staged, nothing to clean up")
	assert.Zero(t, e.publisher.calls)
}

func TestRunCycleUnreachableAssetNeverPublishes(t *testing.T) {
	e := newEnv(t)
	e.stager.reachable = false

	err := e.runner.RunCycle(context.Background())

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, StageVerifyingURL, cycleErr.Stage)
	assert.ErrorIs(t, err, ErrNotReachable)

	assert.Zero(t, e.publisher.calls, "publish API must not be invoked for an unreachable asset")
	require.Len(t, e.stager.cleanedUp, 1, "staged copy must still be removed")
	assert.True(t, fileExists(e.localPath))
}

func TestRunCycleCredentialFailureStopsPublish(t *testing.T) {
	e := newEnv(t)
	e.tokens.err = errors.New("manual re-authorization required")

	err := e.runner.RunCycle(context.Background())

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, StagePublishing, cycleErr.Stage)
	assert.Zero(t, e.publisher.calls)
	assert.True(t, fileExists(e.localPath))
	require.Len(t, e.stager.cleanedUp, 1)
}

func TestRunCyclePublishFailurePreservesLocalFile(t *testing.T) {
	e := newEnv(t)
	e.publisher.err = errors.New("publish api rejected the media")

	err := e.runner.RunCycle(context.Background())

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, StagePublishing, cycleErr.Stage)

	assert.True(t, fileExists(e.localPath), "local file must survive a publish failure")
	require.Len(t, e.stager.cleanedUp, 1, "remote cleanup is unconditional once staged")
}

func TestRunCycleCaptionWithoutTags(t *testing.T) {
	e := newEnv(t)
	e.runner.tags = fixedTags{""}

	require.NoError(t, e.runner.RunCycle(context.Background()))
	assert.Equal(t, "sunset", e.publisher.lastCap)
}

func TestRunCycleLocalDeleteFailureIsNonFatal(t *testing.T) {
	e := newEnv(t)
	e.runner.removeFile = func(string) error { return errors.New("read-only filesystem") }

	err := e.runner.RunCycle(context.Background())
	assert.NoError(t, err, "a cleanup warning must not fail the cycle")
}
