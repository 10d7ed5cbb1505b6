package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by a shared Redis instance. Failures degrade to
// cache misses; Redis being down never breaks a read.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string, out any) bool {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return unmarshal([]byte(val), out) == nil
}

func (r *Redis) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := marshal(val)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, key, data, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) {
	_ = r.client.Del(ctx, key).Err()
}

func marshal(val any) ([]byte, error)      { return json.Marshal(val) }
func unmarshal(data []byte, out any) error { return json.Unmarshal(data, out) }
