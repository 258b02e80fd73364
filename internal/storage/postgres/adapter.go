package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/storage"
)

// postgresStorage implements the Repository interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Repository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS batch_sets (
		environment TEXT PRIMARY KEY,
		batch BOOLEAN NOT NULL,
		hits JSONB NOT NULL,
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
func (s *postgresStorage) Load(ctx context.Context, env domain.Environment) (*domain.BatchSet, error) {
	var (
		batch bool
		data  []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT batch, hits FROM batch_sets WHERE environment = $1
	`, env.String()).Scan(&batch, &data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("HITs for " + env.String())
	}
	if err != nil {
		return nil, err
	}

	var hits []domain.HIT
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("failed to decode hits for %s: %w", env, err)
	}
	return &domain.BatchSet{Batch: batch, HITs: hits}, nil
}

// Save replaces the batch set stored for an environment
func (s *postgresStorage) Save(ctx context.Context, env domain.Environment, set *domain.BatchSet) error {
	data, err := json.Marshal(set.HITs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batch_sets (environment, batch, hits, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (environment) DO UPDATE SET
			batch = EXCLUDED.batch,
			hits = EXCLUDED.hits,
			updated_at = EXCLUDED.updated_at
	`, env.String(), set.Batch, data, time.Now().UTC())
	return err
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
