package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/storage"
)

// sqliteStorage implements the Repository interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Repository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS batch_sets (
		environment TEXT PRIMARY KEY,
		batch INTEGER NOT NULL,
		hits TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create batch_sets: %w", err)
	}
	return nil
}

// Load retrieves the batch set stored for an environment
func (s *sqliteStorage) Load(ctx context.Context, env domain.Environment) (*domain.BatchSet, error) {
	var (
		batch int
		data  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT batch, hits FROM batch_sets WHERE environment = ?
	`, env.String()).Scan(&batch, &data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("HITs for " + env.String())
	}
	if err != nil {
		return nil, err
	}

	var hits []domain.HIT
	if err := json.Unmarshal([]byte(data), &hits); err != nil {
		return nil, fmt.Errorf("failed to decode hits for %s: %w", env, err)
	}
	return &domain.BatchSet{Batch: batch == 1, HITs: hits}, nil
}

// Save replaces the batch set stored for an environment
func (s *sqliteStorage) Save(ctx context.Context, env domain.Environment, set *domain.BatchSet) error {
	data, err := json.Marshal(set.HITs)
	if err != nil {
		return err
	}
	batch := 0
	if set.Batch {
		batch = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batch_sets (environment, batch, hits, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (environment) DO UPDATE SET
			batch = excluded.batch,
			hits = excluded.hits,
			updated_at = excluded.updated_at
	`, env.String(), batch, string(data), time.Now().UTC())
	return err
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
