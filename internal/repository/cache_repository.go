package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

const (
	captchaKeyPrefix   = "captcha:"
	dashboardKeyPrefix = "dashboard:"
)

// CacheRepository wraps Redis for the two cache uses of the API: short-lived
// captcha codes and dashboard payloads. A nil client degrades to cache
// misses so the API keeps serving without Redis.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// SetCaptcha stores a captcha code under its key for the given TTL.
func (r *CacheRepository) SetCaptcha(ctx context.Context, key, code string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("captcha store unavailable")
	}
	if err := r.client.Set(ctx, captchaKeyPrefix+key, code, ttl).Err(); err != nil {
		return fmt.Errorf("store captcha %s: %w", key, err)
	}
	return nil
}

// GetCaptcha returns the stored code for a captcha key.
func (r *CacheRepository) GetCaptcha(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrCacheMiss
	}
	code, err := r.client.Get(ctx, captchaKeyPrefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("get captcha %s: %w", key, err)
	}
	return code, nil
}

// DeleteCaptcha removes a captcha after a verification attempt. Codes are
// single use whether or not the attempt succeeded.
func (r *CacheRepository) DeleteCaptcha(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, captchaKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete captcha %s: %w", key, err)
	}
	return nil
}

// GetDashboard retrieves a cached dashboard payload into dest.
func (r *CacheRepository) GetDashboard(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, dashboardKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("get dashboard cache %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal dashboard cache %s: %w", key, err)
	}
	return nil
}

// SetDashboard caches a dashboard payload with the given TTL.
func (r *CacheRepository) SetDashboard(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal dashboard cache %s: %w", key, err)
	}
	if err := r.client.Set(ctx, dashboardKeyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set dashboard cache %s: %w", key, err)
	}
	return nil
}

// InvalidateDashboards removes all cached dashboard payloads. Called after
// writes that shift the counts.
func (r *CacheRepository) InvalidateDashboards(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	iter := r.client.Scan(ctx, 0, dashboardKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			r.logger.Warn("dashboard cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan dashboard cache: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
