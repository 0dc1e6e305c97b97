package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// FeatureFlags answers the tenant-scoped exam-enabled check consulted before
// any attempt is created.
type FeatureFlags interface {
	ExamEnabled(ctx context.Context, schoolID string) (bool, error)
}

// StaticFlags answers from configuration only; used when redis is not
// deployed and in tests.
type StaticFlags struct {
	Enabled bool
}

func (f StaticFlags) ExamEnabled(ctx context.Context, schoolID string) (bool, error) {
	return f.Enabled, nil
}

// RedisFlags reads per-school overrides from redis and falls back to the
// configured default when no override is set.
type RedisFlags struct {
	client   *redis.Client
	fallback bool
}

func NewRedisFlags(client *redis.Client, fallback bool) *RedisFlags {
	return &RedisFlags{client: client, fallback: fallback}
}

func flagKey(schoolID string) string {
	return "exam:enabled:" + schoolID
}

func (f *RedisFlags) ExamEnabled(ctx context.Context, schoolID string) (bool, error) {
	value, err := f.client.Get(ctx, flagKey(schoolID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return f.fallback, nil
		}
		return false, err
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return f.fallback, nil
	}
	return enabled, nil
}

// SetExamEnabled writes a per-school override; exposed for admin tooling.
func (f *RedisFlags) SetExamEnabled(ctx context.Context, schoolID string, enabled bool) error {
	return f.client.Set(ctx, flagKey(schoolID), strconv.FormatBool(enabled), 0).Err()
}
