package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"vibefeed/internal/middleware"
	"vibefeed/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Aside implements the cache-aside pattern. On a hit dest is decoded from
// Redis. On a miss load fills dest and the result is stored under key for ttl.
// Redis failures degrade to calling load; errors from load are returned as is
// and nothing is cached.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, load func() error) error {
	family := keyFamily(key)

	rdb := GetClient()
	if rdb == nil {
		return load()
	}

	raw, err := rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			observability.CacheLookups.WithLabelValues(family, "hit").Inc()
			return nil
		}
		// Corrupt entry; drop it and reload
		rdb.Del(ctx, key)
	case errors.Is(err, redis.Nil):
		observability.CacheLookups.WithLabelValues(family, "miss").Inc()
	default:
		observability.CacheLookups.WithLabelValues(family, "error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := load(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

func keyFamily(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
