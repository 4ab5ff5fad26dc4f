package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 500 * time.Millisecond

type RedisCache struct {
	cli    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to the redis instance described by url, e.g. redis://localhost:6379/0.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{
		cli:    redis.NewClient(opts),
		ttl:    ttl,
		prefix: "blobstats:",
	}, nil
}

func (r *RedisCache) Close() error { return r.cli.Close() }

func (r *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	bz, err := r.cli.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		// redis.Nil and transport errors are both treated as a miss
		return nil, false
	}
	return bz, true
}

func (r *RedisCache) Set(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.cli.Set(ctx, r.prefix+key, value, r.ttl).Err()
}
