package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/storage/storagetest"
)

func TestFileStorageContract(t *testing.T) {
	repo := NewFileStorage(filepath.Join(t.TempDir(), "hit-ids.json"))
	defer repo.Close()
	storagetest.Run(t, repo)
}

func TestFileStorageLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hit-ids.json")
	repo := NewFileStorage(path)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.EnvironmentProduction, domain.NewSingleSet(storagetest.SampleHIT("S", 3))))
	require.NoError(t, repo.Save(ctx, domain.EnvironmentSandbox, domain.NewBatchSet([]domain.HIT{storagetest.SampleHIT("A", 9)})))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, byte('{'), doc["production"][0])
	assert.Equal(t, byte('['), doc["sandbox"][0])
}

func TestFileStorageReadsHistoricalDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hit-ids.json")
	legacy := `{"sandbox":{"HITId":"X1","HITTypeId":"T1","MaxAssignments":12,"Expiration":"2024-03-05T12:00:00Z","Question":"q","NumberOfAssignmentsCompleted":0,"NumberOfAssignmentsAvailable":12,"NumberOfAssignmentsPending":0,"CreationTime":"2024-03-01T12:00:00Z"}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	set, err := NewFileStorage(path).Load(context.Background(), domain.EnvironmentSandbox)
	require.NoError(t, err)
	assert.False(t, set.Batch)
	require.Len(t, set.HITs, 1)
	assert.Equal(t, "X1", set.HITs[0].ID)
	assert.Equal(t, 12, set.HITs[0].MaxAssignments)
}
