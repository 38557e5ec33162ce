package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpenRedis creates a Redis client and pings it. The returned closer is safe
// to defer even when an error is returned.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, func() {}, fmt.Errorf("[storage OpenRedis] ping failed: %w", err)
	}

	closer := func() { _ = client.Close() }
	return client, closer, nil
}
