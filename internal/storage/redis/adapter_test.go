package redis

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/storage/storagetest"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "hitbatch:batch-set:sandbox", Key(domain.EnvironmentSandbox))
}

func TestRedisStorageContract(t *testing.T) {
	addr := os.Getenv("HITBATCH_TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("HITBATCH_TEST_REDIS_ADDRESS not set")
	}
	repo, err := NewRedisStorage(addr, "", 15)
	require.NoError(t, err)
	defer repo.Close()

	client := repo.(*redisStorage).client
	require.NoError(t, client.Del(context.Background(), Key(domain.EnvironmentSandbox), Key(domain.EnvironmentProduction)).Err())

	storagetest.Run(t, repo)
}
