package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sisko/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore keeps the queue blob in a one-row table. Same full-overwrite
// semantics as FileStore, but survives on deployments that already ship a
// local database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewSQLiteStore(path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	query := `CREATE TABLE IF NOT EXISTS offline_queue (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        payload TEXT NOT NULL,
        updated_at DATETIME NOT NULL
    )`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("create offline_queue table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]models.ActionRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM offline_queue WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug().Msg("no persisted queue yet, starting empty")
		return []models.ActionRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	var queue []models.ActionRecord
	if err := json.Unmarshal([]byte(payload), &queue); err != nil {
		s.logger.Warn().Err(err).Msg("persisted queue corrupt, discarding")
		return []models.ActionRecord{}, nil
	}
	return queue, nil
}

func (s *SQLiteStore) Save(ctx context.Context, queue []models.ActionRecord) error {
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	query := `INSERT INTO offline_queue (id, payload, updated_at) VALUES (1, ?, ?)
              ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, string(data), time.Now()); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
