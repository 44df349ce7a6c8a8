package schedule

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "schedule.json"))

	next := time.Date(2026, 8, 29, 18, 30, 0, 0, time.UTC)
	require.NoError(t, store.Save(State{NextRunAt: next}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.NextRunAt.Equal(next))
}

func TestStoreLoadMissingYieldsZeroState(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "schedule.json"))

	state, err := store.Load()
	require.NoError(t, err)
	assert.True(t, state.NextRunAt.IsZero())
}

func TestStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")
	require.NoError(t, os.WriteFile(path, []byte("???"), 0644))

	_, err := NewStore(path).Load()
	assert.Error(t, err)
}

func newTestScheduler(t *testing.T, store *Store, cycles *int, stopAfter int) (*Scheduler, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sched := NewScheduler(store, func(context.Context) error {
		*cycles++
		if *cycles >= stopAfter {
			cancel()
		}
		return nil
	}, 10*time.Minute, 20*time.Minute, zerolog.Nop())
	sched.tick = time.Millisecond
	return sched, ctx
}

func TestRunStartsImmediatelyWithoutPersistedState(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "schedule.json"))
	cycles := 0
	sched, ctx := newTestScheduler(t, store, &cycles, 1)

	err := sched.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, cycles)
}

func TestRunFiresImmediatelyWhenPersistedTimeHasPassed(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "schedule.json"))
	require.NoError(t, store.Save(State{NextRunAt: time.Now().Add(-2 * time.Hour)}))

	cycles := 0
	sched, ctx := newTestScheduler(t, store, &cycles, 1)

	start := time.Now()
	err := sched.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, cycles)
	assert.Less(t, time.Since(start), time.Second, "a past next_run_at must fire immediately")
}

func TestRunWaitsOnlyRemainingDuration(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "schedule.json"))
	require.NoError(t, store.Save(State{NextRunAt: time.Now().Add(50 * time.Millisecond)}))

	cycles := 0
	sched, ctx := newTestScheduler(t, store, &cycles, 1)

	start := time.Now()
	err := sched.Run(ctx)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, cycles)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "must wait the persisted remainder")
	assert.Less(t, elapsed, time.Second, "must not wait a fresh full delay")
}

func TestRunPersistsNextRunAfterCycle(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "schedule.json"))
	cycles := 0
	sched, ctx := newTestScheduler(t, store, &cycles, 1)

	before := time.Now()
	err := sched.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	state, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.True(t, state.NextRunAt.After(before.Add(10*time.Minute-time.Second)),
		"next run must be at least min delay in the future")
	assert.True(t, state.NextRunAt.Before(before.Add(21*time.Minute)),
		"next run must be at most max delay in the future")
}

func TestRunAdvancesScheduleEvenWhenCycleFails(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "schedule.json"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycles := 0
	sched := NewScheduler(store, func(context.Context) error {
		cycles++
		cancel()
		return errors.New("cycle failed")
	}, 10*time.Minute, 20*time.Minute, zerolog.Nop())
	sched.tick = time.Millisecond

	err := sched.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, cycles)

	state, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.False(t, state.NextRunAt.IsZero(), "next_run_at must be advanced after a failed cycle")
}

func TestRunFailsOnCorruptStateAtStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	sched := NewScheduler(NewStore(path), func(context.Context) error { return nil },
		time.Minute, 2*time.Minute, zerolog.Nop())

	err := sched.Run(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestRandomDelayWithinBounds(t *testing.T) {
	sched := NewScheduler(nil, nil, 10*time.Minute, 20*time.Minute, zerolog.Nop())
	for i := 0; i < 100; i++ {
		d := sched.randomDelay()
		assert.GreaterOrEqual(t, d, 10*time.Minute)
		assert.Less(t, d, 20*time.Minute)
	}
}

func TestRandomDelayDegenerateBounds(t *testing.T) {
	sched := NewScheduler(nil, nil, 10*time.Minute, 10*time.Minute, zerolog.Nop())
	assert.Equal(t, 10*time.Minute, sched.randomDelay())
}
