package media

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNoEligibleMedia is returned when the directory holds no file meeting the
// type and size constraints.
var ErrNoEligibleMedia = errors.New("no eligible media file in directory")

// Selector picks a random eligible media file from a directory. Files that
// fail downstream validation can be excluded from later picks for the
// lifetime of the process; they are never deleted.
type Selector struct {
	dir      string
	limits   Limits
	excluded map[string]struct{}
	logger   zerolog.Logger

	// pick chooses an index in [0,n); replaced in tests for determinism.
	pick func(n int) int
}

func NewSelector(dir string, limits Limits, logger zerolog.Logger) *Selector {
	return &Selector{
		dir:      dir,
		limits:   limits,
		excluded: make(map[string]struct{}),
		logger:   logger,
		pick:     rand.Intn,
	}
}

// SelectOne enumerates the directory and returns one eligible file, chosen
// uniformly at random.
func (s *Selector) SelectOne() (Item, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Item{}, fmt.Errorf("failed to read media directory %s: %w", s.dir, err)
	}

	var eligible []Item
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		kind, ok := KindOf(entry.Name())
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("skipping unreadable directory entry")
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if _, skip := s.excluded[path]; skip {
			continue
		}
		if max := s.limits.Max(kind); max > 0 && info.Size() > max {
			s.logger.Debug().
				Str("file", entry.Name()).
				Int64("size_bytes", info.Size()).
				Int64("max_bytes", max).
				Msg("skipping oversized file")
			continue
		}

		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		eligible = append(eligible, Item{
			Path:        path,
			Kind:        kind,
			SizeBytes:   info.Size(),
			CaptionSeed: CleanCaptionSeed(base),
		})
	}

	if len(eligible) == 0 {
		return Item{}, ErrNoEligibleMedia
	}

	// ReadDir order is already sorted, but keep the contract explicit so the
	// injected pick function sees a stable ordering.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Path < eligible[j].Path })

	item := eligible[s.pick(len(eligible))]
	s.logger.Debug().
		Str("file", item.Path).
		Str("kind", item.Kind.String()).
		Int("eligible", len(eligible)).
		Msg("selected media file")
	return item, nil
}

// Exclude removes a file from future selection attempts for this process run.
func (s *Selector) Exclude(path string) {
	s.excluded[path] = struct{}{}
}
