package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"promptlab/internal/failure"
)

// RedisStore keeps the record as a JSON string under StorageKey.
type RedisStore struct {
	rdb    *redis.Client
	key    string
	logger *slog.Logger
}

// ConnectRedis parses url, creates a client and verifies connectivity.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func NewRedisStore(rdb *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{rdb: rdb, key: StorageKey, logger: logger}
}

func (s *RedisStore) Load(ctx context.Context) (Configuration, bool) {
	val, err := s.rdb.Get(ctx, s.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error("config_read_failed", "key", s.key, "error", err)
		}
		return Configuration{}, false
	}
	cfg, err := decode([]byte(val))
	if err != nil {
		s.logger.Error("config_parse_failed", "key", s.key, "error", err)
		return Configuration{}, false
	}
	return cfg, true
}

func (s *RedisStore) Save(ctx context.Context, cfg Configuration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return failure.Persistence(err)
	}
	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return failure.Persistence(err)
	}
	return nil
}
