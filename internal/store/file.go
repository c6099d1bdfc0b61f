package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sisko/internal/models"

	"github.com/rs/zerolog"
)

// FileStore keeps the queue as a single JSON file. The reference backend.
type FileStore struct {
	path   string
	logger *zerolog.Logger
}

func NewFileStore(path string, logger *zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Load(ctx context.Context) ([]models.ActionRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("path", s.path).Msg("no queue file yet, starting empty")
			return []models.ActionRecord{}, nil
		}
		return nil, fmt.Errorf("read queue file: %w", err)
	}

	var queue []models.ActionRecord
	if err := json.Unmarshal(data, &queue); err != nil {
		// Corrupt data is discarded, not fatal. Logged at warn so operators
		// can tell a data-loss event from a fresh install.
		s.logger.Warn().Err(err).Str("path", s.path).Msg("queue file corrupt, discarding")
		return []models.ActionRecord{}, nil
	}
	return queue, nil
}

func (s *FileStore) Save(ctx context.Context, queue []models.ActionRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}

	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	// Write-then-rename so a crash mid-write cannot corrupt the prior blob.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write queue file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace queue file: %w", err)
	}
	return nil
}
