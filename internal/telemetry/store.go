package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the metrics snapshot in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored snapshot, or nil when none was saved yet.
func (s *FileStore) Load() (*QueryMetricsSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}
	var snap QueryMetricsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}
	return &snap, nil
}

// Save replaces the stored snapshot atomically.
func (s *FileStore) Save(snap *QueryMetricsSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace metrics: %w", err)
	}
	return nil
}
