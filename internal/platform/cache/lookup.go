package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lookup is a bounded, eventually-consistent string cache with a fixed TTL.
// Entries expire on their own; staleness within the TTL is tolerated by
// design of the callers (group icon URLs and similar cosmetic lookups).
type Lookup struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewLookup constructs a Lookup namespaced under the given prefix.
func NewLookup(client *redis.Client, prefix string, ttl time.Duration) *Lookup {
	return &Lookup{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached value and whether it was present.
func (l *Lookup) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := l.client.Get(ctx, l.prefix+":"+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set stores the value under the configured TTL.
func (l *Lookup) Set(ctx context.Context, key, value string) error {
	return l.client.Set(ctx, l.prefix+":"+key, value, l.ttl).Err()
}

// Reset drops every entry under the prefix. Used by tests to isolate state.
func (l *Lookup) Reset(ctx context.Context) error {
	iter := l.client.Scan(ctx, 0, l.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
