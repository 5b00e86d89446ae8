package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	reportKeyPrefix = "vector-metrics:report:"
	latestKey       = "vector-metrics:report:latest"
)

// RedisReportStore caches run results in Redis keyed by batch fingerprint.
type RedisReportStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReportStore creates a Redis-backed report store. A zero ttl keeps
// entries until they are overwritten.
func NewRedisReportStore(client *redis.Client, ttl time.Duration) *RedisReportStore {
	return &RedisReportStore{client: client, ttl: ttl}
}

func reportKey(fingerprint string) string {
	return reportKeyPrefix + fingerprint
}

func (s *RedisReportStore) SaveResult(ctx context.Context, res *models.RunResult) error {
	if res == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, reportKey(res.Fingerprint), data, s.ttl)
	pipe.Set(ctx, latestKey, res.Fingerprint, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *RedisReportStore) GetResult(ctx context.Context, fingerprint string) (*models.RunResult, error) {
	data, err := s.client.Get(ctx, reportKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	var res models.RunResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &res, nil
}

func (s *RedisReportStore) LatestResult(ctx context.Context) (*models.RunResult, error) {
	fingerprint, err := s.client.Get(ctx, latestKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest fingerprint: %w", err)
	}
	return s.GetResult(ctx, fingerprint)
}
