package storage

import (
	"context"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// Repository is the abstract interface for the persistence layer.
// One BatchSet is kept per environment and always read and written whole.
type Repository interface {
	// Load returns the set for env, or a NotFound AppError when nothing was uploaded there
	Load(ctx context.Context, env domain.Environment) (*domain.BatchSet, error)

	// Save replaces the set for env
	Save(ctx context.Context, env domain.Environment, set *domain.BatchSet) error

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
