package aggregator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/storage/file"
)

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	set := domain.NewBatchSet([]domain.HIT{
		{ID: "late", MaxAssignments: 9, NumberCompleted: 2, NumberAvailable: 6, NumberPending: 1, Expiration: now.Add(2 * time.Hour)},
		{ID: "early", MaxAssignments: 4, NumberCompleted: 4, Expiration: now.Add(-time.Hour)},
		{ID: "middle", MaxAssignments: 9, NumberAvailable: 9, Expiration: now.Add(time.Hour)},
	})

	s := Summarize(set, now)
	var ids []string
	for _, r := range s.Rows {
		ids = append(ids, r.HITID)
	}
	assert.Equal(t, []string{"early", "middle", "late"}, ids)
	assert.True(t, s.Rows[0].Expired)
	assert.False(t, s.Rows[2].Expired)
	assert.Equal(t, Totals{MaxAssignments: 22, Pending: 1, Available: 15, Completed: 6}, s.Totals)
	assert.True(t, s.Batch)
}

func TestEnvironmentStatus(t *testing.T) {
	repo := file.NewFileStorage(filepath.Join(t.TempDir(), "hit-ids.json"))
	ctx := context.Background()
	agg := NewAggregator(repo)

	_, err := agg.EnvironmentStatus(ctx, domain.EnvironmentSandbox)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, repo.Save(ctx, domain.EnvironmentSandbox, domain.NewSingleSet(domain.HIT{ID: "S", MaxAssignments: 12})))
	s, err := agg.EnvironmentStatus(ctx, domain.EnvironmentSandbox)
	require.NoError(t, err)
	assert.Equal(t, domain.EnvironmentSandbox, s.Environment)
	assert.Equal(t, 12, s.Totals.MaxAssignments)
}
