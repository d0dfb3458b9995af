package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/linecalc/internal/engine"
	"github.com/Vodeneev/linecalc/internal/pkg/config"
)

// ReportKeyPrefix namespaces cached reports.
const ReportKeyPrefix = "linecalc:report:"

// Ensure RedisReportCache implements ReportCache
var _ ReportCache = (*RedisReportCache)(nil)

// RedisReportCache keeps whole reports as JSON with a TTL.
type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReportCache(cfg config.RedisConfig) (*RedisReportCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisReportCacheWithClient(client, cfg.TTL), nil
}

// NewRedisReportCacheWithClient wraps an existing client.
func NewRedisReportCacheWithClient(client *redis.Client, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{client: client, ttl: ttl}
}

func (r *RedisReportCache) Get(ctx context.Context, key string) (*engine.Report, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", key, err)
	}

	var report engine.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report %s: %w", key, err)
	}
	return &report, nil
}

func (r *RedisReportCache) Set(ctx context.Context, key string, report *engine.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store report %s: %w", key, err)
	}
	return nil
}

// Close closes connection with Redis
func (r *RedisReportCache) Close() error {
	return r.client.Close()
}

// ReportKey derives the cache key of a request under an engine configuration fingerprint.
func ReportKey(fingerprint string, req engine.Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write(data)
	return ReportKeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
