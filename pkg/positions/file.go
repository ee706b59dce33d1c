package positions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// fileVersion is written into every positions file.
const fileVersion = "1.0"

// FileStore keeps one JSON file per project in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

type fileDoc struct {
	Version   string               `json:"version"`
	Project   string               `json:"project"`
	UpdatedAt time.Time            `json:"updated_at"`
	Positions map[string]geom.Vec3 `json:"positions"`
}

// NewFileStore creates a file-based store.
// If baseDir is empty, defaults to ~/.config/astrolabe/positions/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".config", "astrolabe", "positions")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create positions dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) projectPath(project string) string {
	return filepath.Join(s.baseDir, project+".json")
}

// Load reads a project's positions. A missing or unreadable file is
// treated as empty.
func (s *FileStore) Load(ctx context.Context, project string) (map[string]geom.Vec3, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(project)
}

func (s *FileStore) read(project string) (map[string]geom.Vec3, error) {
	data, err := os.ReadFile(s.projectPath(project))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]geom.Vec3{}, nil
		}
		return nil, fmt.Errorf("read positions file: %w", err)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil || doc.Positions == nil {
		return map[string]geom.Vec3{}, nil
	}
	return doc.Positions, nil
}

// Save replaces a project's positions.
func (s *FileStore) Save(ctx context.Context, project string, positions map[string]geom.Vec3) error {
	if err := Validate(positions); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(project, positions)
}

// Merge overwrites the given positions and keeps all others.
func (s *FileStore) Merge(ctx context.Context, project string, positions map[string]geom.Vec3) (int, error) {
	if err := Validate(positions); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(project)
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return len(existing), nil
	}
	merged := merge(existing, positions)
	if err := s.write(project, merged); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// write stores atomically via a temp file and rename.
func (s *FileStore) write(project string, positions map[string]geom.Vec3) error {
	if positions == nil {
		positions = map[string]geom.Vec3{}
	}
	data, err := json.MarshalIndent(fileDoc{
		Version:   fileVersion,
		Project:   project,
		UpdatedAt: time.Now().UTC(),
		Positions: positions,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	tmp, err := os.CreateTemp(s.baseDir, project+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write positions file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write positions file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.projectPath(project)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace positions file: %w", err)
	}
	return nil
}

// Delete removes a project's positions.
func (s *FileStore) Delete(ctx context.Context, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.projectPath(project)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove positions file: %w", err)
	}
	return nil
}

// Close does nothing for file stores.
func (s *FileStore) Close() error { return nil }

// Path returns the base directory for positions files.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
