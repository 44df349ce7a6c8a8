package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the durable scheduler record. NextRunAt is an absolute instant:
// restarts resume waiting for the same wall-clock time instead of starting a
// fresh delay window.
type State struct {
	NextRunAt time.Time `json:"next_run_at"`
}

// Store persists State as a JSON file with atomic replace.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the persisted state. A missing file yields the zero State, which
// schedules an immediate first run.
func (s *Store) Load() (State, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("failed to read schedule file: %w", err)
	}

	var state State
	if err := json.Unmarshal(b, &state); err != nil {
		return State{}, fmt.Errorf("failed to parse schedule file %s: %w", s.Path, err)
	}
	return state, nil
}

// Save writes the state via write-temp-then-rename.
func (s *Store) Save(state State) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedule state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".schedule-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp schedule file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp schedule file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp schedule file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to replace schedule file: %w", err)
	}
	return nil
}
