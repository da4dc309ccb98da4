package sweep

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CheckpointStore persists the sweep position between runs.
type CheckpointStore interface {
	// Load returns the saved checkpoint and true, or false if none exists.
	Load() (Checkpoint, bool, error)
	Save(Checkpoint) error
}

// FileStore keeps the checkpoint in a JSON file.
type FileStore struct {
	Path string
}

func (s FileStore) Load() (Checkpoint, bool, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, err
	}
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parsing checkpoint %s: %w", s.Path, err)
	}
	return c, true, nil
}

// Save replaces the file by renaming a temporary file over it.
func (s FileStore) Save(c Checkpoint) error {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}
