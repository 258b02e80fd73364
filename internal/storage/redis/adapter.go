package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	"github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/storage"
)

const keyPrefix = "hitbatch:batch-set:"

// redisStorage stores each environment's set as one JSON value
type redisStorage struct {
	client *redis.Client
}

// NewRedisStorage connects to address and verifies the connection
func NewRedisStorage(address, password string, db int) (storage.Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	s := &redisStorage{client: client}
	if err := s.Migrate(context.Background()); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// Key returns the key holding env's set
func Key(env domain.Environment) string {
	return keyPrefix + env.String()
}

// Migrate only checks connectivity; redis needs no schema
func (s *redisStorage) Migrate(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Load retrieves the batch set stored for an environment
func (s *redisStorage) Load(ctx context.Context, env domain.Environment) (*domain.BatchSet, error) {
	data, err := s.client.Get(ctx, Key(env)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NewNotFoundError("HITs for " + env.String())
	}
	if err != nil {
		return nil, err
	}

	var set domain.BatchSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", Key(env), err)
	}
	return &set, nil
}

// Save replaces the batch set stored for an environment
func (s *redisStorage) Save(ctx context.Context, env domain.Environment, set *domain.BatchSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, Key(env), data, 0).Err()
}

// Close closes the redis client
func (s *redisStorage) Close() error {
	return s.client.Close()
}
