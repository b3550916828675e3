// Package store persists game snapshots as a single JSON file, written
// whole at each mutation boundary and read whole at startup.
package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/lox/bingobot/internal/fileutil"
	"github.com/lox/bingobot/internal/game"
)

// FileStore reads and writes the snapshot file. A missing file is not an
// error; a corrupt one is reported so the operator sees the warning.
type FileStore struct {
	path   string
	logger *log.Logger
}

// NewFileStore creates a store backed by the given path.
func NewFileStore(path string, logger *log.Logger) *FileStore {
	return &FileStore{path: path, logger: logger.WithPrefix("store")}
}

// Load reads the snapshot. ok=false when no file exists.
func (s *FileStore) Load() (game.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return game.Snapshot{}, false, nil
	}
	if err != nil {
		return game.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return game.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	s.logger.Info("Loaded snapshot", "path", s.path, "players", len(snap.Players))
	return snap, true, nil
}

// Save writes the snapshot atomically so a crash mid-write never corrupts
// the previous snapshot.
func (s *FileStore) Save(snap game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
