// Package dedupsvc records which events were already dispatched.
package dedupsvc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/notification"
)

const keyPrefix = "thesis:dispatched:" // thesis:dispatched:{event_id}

type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

var _ notification.Deduper = (*RedisDeduper)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "claiming event")
	}
	return ok, nil
}

// MemoryDeduper keeps claimed keys for the lifetime of the process.
type MemoryDeduper struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

var _ notification.Deduper = (*MemoryDeduper)(nil)

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{claimed: make(map[string]struct{})}
}

func (d *MemoryDeduper) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.claimed[key]; ok {
		return false, nil
	}
	d.claimed[key] = struct{}{}
	return true, nil
}
