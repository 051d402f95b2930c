package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpenRedis returns a client for the idempotency store, failing fast when redis is unreachable.
func OpenRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}
