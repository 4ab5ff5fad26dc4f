package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Cache stores serialized query results. Entries expire after the cache's TTL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
}

const DefaultCacheSize = 1024

type entry struct {
	value    []byte
	expireAt time.Time
}

type LocalCache struct {
	*lru.Cache
	ttl time.Duration
	now func() time.Time
}

func NewLocalCache(size uint64, ttl time.Duration) (Cache, error) {
	cache, err := lru.New(int(size))
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		Cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

func (c *LocalCache) Get(key string) ([]byte, bool) {
	v, ok := c.Cache.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if c.ttl > 0 && c.now().After(e.expireAt) {
		c.Cache.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *LocalCache) Set(key string, value []byte) error {
	c.Cache.Add(key, entry{value: value, expireAt: c.now().Add(c.ttl)})
	return nil
}
