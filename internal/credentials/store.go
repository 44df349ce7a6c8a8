package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Load when no credential has been persisted yet.
var ErrNotFound = errors.New("no stored credential")

// FileStore persists a single Credential as a JSON file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the persisted credential. A missing file yields ErrNotFound.
func (s *FileStore) Load() (Credential, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("failed to read credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(b, &cred); err != nil {
		return Credential{}, fmt.Errorf("failed to parse credential file %s: %w", s.Path, err)
	}
	if cred.Value == "" {
		return Credential{}, fmt.Errorf("credential file %s has no value", s.Path)
	}
	return cred, nil
}

// Save writes the credential atomically: the record is written to a temp file
// in the same directory and renamed over the target, so a reader never
// observes a half-written file.
func (s *FileStore) Save(cred Credential) error {
	if err := EnsureParentDir(s.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".credential-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp credential file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}
