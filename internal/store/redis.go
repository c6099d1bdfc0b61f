package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sisko/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const queueKey = "sisko:offline_queue"

// RedisStore keeps the queue blob under a fixed key. Used on kiosk
// deployments that run a local redis; pair it with a fallback via
// FailoverStore since redis may not outlive the host.
type RedisStore struct {
	client *redis.Client
	logger *zerolog.Logger
}

// NewRedisClient builds a client from connection settings.
func NewRedisClient(addr, password string, db, poolSize int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
}

func NewRedisStore(client *redis.Client, logger *zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Load(ctx context.Context) ([]models.ActionRecord, error) {
	val, err := s.client.Get(ctx, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug().Msg("no persisted queue in redis, starting empty")
		return []models.ActionRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load queue from redis: %w", err)
	}

	var queue []models.ActionRecord
	if err := json.Unmarshal([]byte(val), &queue); err != nil {
		s.logger.Warn().Err(err).Msg("persisted queue corrupt, discarding")
		return []models.ActionRecord{}, nil
	}
	return queue, nil
}

func (s *RedisStore) Save(ctx context.Context, queue []models.ActionRecord) error {
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := s.client.Set(ctx, queueKey, data, 0).Err(); err != nil {
		return fmt.Errorf("save queue to redis: %w", err)
	}
	return nil
}
