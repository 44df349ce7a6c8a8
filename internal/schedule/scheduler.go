package schedule

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// defaultTick bounds how long the wait loop sleeps before re-reading the
// clock. Re-checking against wall time means a machine suspend that overshoots
// the target fires the cycle immediately on resume instead of restarting the
// delay.
const defaultTick = time.Minute

// CycleFunc runs one publish cycle. A non-nil error means the cycle ended in
// its failed state; the scheduler advances either way.
type CycleFunc func(ctx context.Context) error

// Scheduler owns the persisted next-run instant and the blocking wait between
// cycles. Exactly one cycle runs at a time; a new next-run time is computed
// and persisted only after the current cycle has ended.
type Scheduler struct {
	store    *Store
	runCycle CycleFunc
	minDelay time.Duration
	maxDelay time.Duration
	logger   zerolog.Logger

	now  func() time.Time
	tick time.Duration
	// delay picks the gap to the next run; replaced in tests.
	delay func() time.Duration
}

func NewScheduler(store *Store, runCycle CycleFunc, minDelay, maxDelay time.Duration, logger zerolog.Logger) *Scheduler {
	s := &Scheduler{
		store:    store,
		runCycle: runCycle,
		minDelay: minDelay,
		maxDelay: maxDelay,
		logger:   logger,
		now:      time.Now,
		tick:     defaultTick,
	}
	s.delay = s.randomDelay
	return s
}

func (s *Scheduler) randomDelay() time.Duration {
	if s.maxDelay <= s.minDelay {
		return s.minDelay
	}
	return s.minDelay + time.Duration(rand.Int63n(int64(s.maxDelay-s.minDelay)))
}

// Run enters the scheduling loop until the context is cancelled. Corrupt
// persisted state is a startup error; everything after startup keeps the
// process alive.
func (s *Scheduler) Run(ctx context.Context) error {
	state, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load schedule state: %w", err)
	}

	if state.NextRunAt.IsZero() {
		s.logger.Info().Msg("no persisted schedule, running first cycle immediately")
	} else {
		s.logger.Info().Time("next_run_at", state.NextRunAt).Msg("resuming persisted schedule")
	}

	for {
		if err := s.waitUntil(ctx, state.NextRunAt); err != nil {
			return err
		}

		// Cycle errors are already logged at the pipeline boundary; the
		// scheduler's job is only to keep going.
		_ = s.runCycle(ctx)

		state.NextRunAt = s.now().Add(s.delay())
		if err := s.store.Save(state); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist schedule state")
		}
		s.logger.Info().Time("next_run_at", state.NextRunAt).Msg("next cycle scheduled")

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// waitUntil blocks until the target instant has passed, waking periodically
// to re-read the wall clock.
func (s *Scheduler) waitUntil(ctx context.Context, target time.Time) error {
	for {
		remaining := target.Sub(s.now())
		if remaining <= 0 {
			return nil
		}

		sleep := remaining
		if sleep > s.tick {
			sleep = s.tick
		}

		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
