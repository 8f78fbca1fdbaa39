// Package cache holds read-through copies of the public listings so repeated
// board and gallery reads skip postgres. Writers invalidate, readers refill.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PostsKey   = "snapboard:posts:list"
	GalleryKey = "snapboard:gallery:list"
)

// ListCache is a read-through cache guarded by a per-key generation. Every
// Invalidate bumps the generation, and a reader may only Fill with the
// generation it saw before reading the source, so a list read before a
// concurrent write is never stored after it.
type ListCache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Generation(ctx context.Context, key string) (int64, error)
	// Fill stores v unless key was invalidated after gen was read. It
	// reports whether v was stored.
	Fill(ctx context.Context, key string, gen int64, v any) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Dial connects to addr and pings it once.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisCache(client, ttl), nil
}

func genKey(key string) string {
	return key + ":gen"
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		// a payload we cannot read is treated as a miss
		return false, nil
	}
	return true, nil
}

func (c *RedisCache) Generation(ctx context.Context, key string) (int64, error) {
	return generation(ctx, c.client, key)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, g getter, key string) (int64, error) {
	gen, err := g.Get(ctx, genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

var errStale = errors.New("cache generation moved")

func (c *RedisCache) Fill(ctx context.Context, key string, gen int64, v any) (bool, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return false, err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := generation(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, genKey(key))

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, err
	}
}

// Invalidate drops keys and bumps their generations in one transaction.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, genKey(k))
		}
		p.Del(ctx, keys...)
		return nil
	})
	return err
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Nop never stores anything. Used when no redis address is configured.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)         { return false, nil }
func (Nop) Generation(context.Context, string) (int64, error)      { return 0, nil }
func (Nop) Fill(context.Context, string, int64, any) (bool, error) { return false, nil }
func (Nop) Invalidate(context.Context, ...string) error            { return nil }
