package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func tagKey(tag string) string {
	return fmt.Sprintf("tag:%s", tag)
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which should populate dest),
// then stores the result in Redis with ttl. fetch must write into dest.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	return AsideTagged(ctx, key, "", dest, ttl, fetch)
}

// AsideTagged is Aside with the key registered under an invalidation tag.
// All keys sharing a tag are dropped together by InvalidateTag.
func AsideTagged(ctx context.Context, key, tag string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	// Fetch from source (DB)
	if err := fetch(); err != nil {
		return err
	}

	// Store into cache (best-effort)
	if err := SetJSON(ctx, key, dest, ttl); err == nil && tag != "" && client != nil {
		client.SAdd(ctx, tagKey(tag), key)
		client.Expire(ctx, tagKey(tag), ttl+time.Minute)
	}
	return nil
}

// InvalidateTag deletes every key registered under the tag, then the tag set itself.
func InvalidateTag(ctx context.Context, tag string) {
	if client == nil {
		return
	}
	keys, err := client.SMembers(ctx, tagKey(tag)).Result()
	if err == nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
	client.Del(ctx, tagKey(tag))
}
