/*
Copyright 2025 Landed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/landedhq/landed/config"
	redis_db "github.com/landedhq/landed/internal/redis-db"
)

// Cache is the lookup cache in front of slow configuration reads, chiefly
// per-item rate strategy profiles. A miss is not an error: Get leaves data
// untouched and returns nil.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, data interface{}) error
	Delete(ctx context.Context, key string) error
}

// Strategy profiles are small and the working set is bounded by the item
// catalog, so the local tier stays modest. Entries ride locally for at most
// a minute; the redis TTL is the real expiry.
const (
	localEntries  = 64000
	localRetainDu = time.Minute
)

// RedisCache backs the Cache interface with redis plus a local TinyLFU tier
// for hot keys.
type RedisCache struct {
	remote *cache.Cache
}

// NewCache connects to the configured redis and returns a ready cache.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return newRedisCache([]string{fmt.Sprintf("redis://%s", cfg.Redis.Dns)})
}

func newRedisCache(addresses []string) (*RedisCache, error) {
	client, err := redis_db.NewRedisClient(addresses)
	if err != nil {
		return nil, err
	}

	return &RedisCache{
		remote: cache.New(&cache.Options{
			Redis:      client.Client(),
			LocalCache: cache.NewTinyLFU(localEntries, localRetainDu),
		}),
	}, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.remote.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

// Get unmarshals the cached value into data. data must be a pointer.
func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	err := r.remote.Get(ctx, key, data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.remote.Delete(ctx, key)
}
