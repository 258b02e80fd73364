// Package storagetest holds the behaviour every storage.Repository adapter must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/storage"
)

// SampleHIT returns a populated HIT with a UTC expiration so it survives any encoding
func SampleHIT(id string, maxAssignments int) domain.HIT {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.HIT{
		ID:              id,
		HITTypeID:       "TYPE1",
		GroupID:         "GROUP1",
		MaxAssignments:  maxAssignments,
		Expiration:      created.Add(96 * time.Hour),
		Question:        "<ExternalQuestion/>",
		NumberCompleted: 1,
		NumberAvailable: maxAssignments - 1,
		CreatedAt:       created,
	}
}

// Run exercises repo against the Repository contract
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing environment is not found", func(t *testing.T) {
		_, err := repo.Load(ctx, domain.EnvironmentSandbox)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("batch set round trip", func(t *testing.T) {
		set := domain.NewBatchSet([]domain.HIT{SampleHIT("A", 9), SampleHIT("B", 2)})
		require.NoError(t, repo.Save(ctx, domain.EnvironmentSandbox, set))

		got, err := repo.Load(ctx, domain.EnvironmentSandbox)
		require.NoError(t, err)
		assert.True(t, got.Batch)
		require.Len(t, got.HITs, 2)
		assert.Equal(t, "A", got.HITs[0].ID)
		assert.Equal(t, 2, got.HITs[1].MaxAssignments)
		assert.True(t, set.HITs[0].Expiration.Equal(got.HITs[0].Expiration))
	})

	t.Run("single set round trip keeps other environments", func(t *testing.T) {
		set := domain.NewSingleSet(SampleHIT("S", 25))
		require.NoError(t, repo.Save(ctx, domain.EnvironmentProduction, set))

		got, err := repo.Load(ctx, domain.EnvironmentProduction)
		require.NoError(t, err)
		assert.False(t, got.Batch)
		require.Len(t, got.HITs, 1)
		assert.Equal(t, 25, got.HITs[0].MaxAssignments)

		other, err := repo.Load(ctx, domain.EnvironmentSandbox)
		require.NoError(t, err)
		assert.Len(t, other.HITs, 2)
	})

	t.Run("save overwrites whole record", func(t *testing.T) {
		set := domain.NewBatchSet([]domain.HIT{SampleHIT("C", 4)})
		require.NoError(t, repo.Save(ctx, domain.EnvironmentSandbox, set))

		got, err := repo.Load(ctx, domain.EnvironmentSandbox)
		require.NoError(t, err)
		require.Len(t, got.HITs, 1)
		assert.Equal(t, "C", got.HITs[0].ID)
	})
}
