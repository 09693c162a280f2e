package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Cache wraps a Repository with Redis-backed caching of search results.
// Every mutation in a sandbox evicts all cached searches for it.
type Cache struct {
	base   Repository
	redis  *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewCache creates a caching Repository using the provided Redis client and TTL.
func NewCache(base Repository, client *redis.Client, ttl time.Duration, logger *log.Logger) *Cache {
	if base == nil {
		panic("repository.NewCache: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Cache{base: base, redis: client, ttl: ttl, logger: logger}
}

func (c *Cache) Of(sandbox string) Accessor {
	return &cachedAccessor{cache: c, base: c.base.Of(sandbox), sandbox: sandbox}
}

type cachedAccessor struct {
	cache   *Cache
	base    Accessor
	sandbox string
}

func (a *cachedAccessor) Search(ctx context.Context, filter Filter) ([]Document, error) {
	if docs, ok := a.load(ctx, filter); ok {
		return docs, nil
	}
	docs, err := a.base.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	a.store(ctx, filter, docs)
	return docs, nil
}

func (a *cachedAccessor) Save(ctx context.Context, doc Document) (string, error) {
	id, err := a.base.Save(ctx, doc)
	if err != nil {
		return "", err
	}
	a.evict(ctx)
	return id, nil
}

func (a *cachedAccessor) RemoveSelection(ctx context.Context, filter Filter) (int, error) {
	n, err := a.base.RemoveSelection(ctx, filter)
	// Partial deletes still change the sandbox.
	a.evict(ctx)
	return n, err
}

func (a *cachedAccessor) load(ctx context.Context, filter Filter) ([]Document, bool) {
	c := a.cache
	if c.redis == nil || c.ttl == 0 {
		return nil, false
	}
	data, err := c.redis.HGet(ctx, cacheKey(a.sandbox), filter.Key()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithField("sandbox", a.sandbox).WithError(err).Debug("cache read failed")
			_ = c.redis.Del(ctx, cacheKey(a.sandbox)).Err()
		}
		return nil, false
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		_ = c.redis.Del(ctx, cacheKey(a.sandbox)).Err()
		return nil, false
	}
	return docs, true
}

func (a *cachedAccessor) store(ctx context.Context, filter Filter, docs []Document) {
	c := a.cache
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return
	}
	key := cacheKey(a.sandbox)
	_, err = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, filter.Key(), data)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		c.logger.WithField("sandbox", a.sandbox).WithError(err).Debug("cache write failed")
	}
}

func (a *cachedAccessor) evict(ctx context.Context) {
	if a.cache.redis == nil {
		return
	}
	if err := a.cache.redis.Del(ctx, cacheKey(a.sandbox)).Err(); err != nil {
		a.cache.logger.WithField("sandbox", a.sandbox).WithError(err).Warn("cache evict failed")
	}
}

func cacheKey(sandbox string) string {
	return "repo:" + sandbox
}
