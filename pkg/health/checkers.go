package health

import (
	"context"
	"runtime"
	"sync"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports unhealthy when p cannot be pinged.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// RedisPinger is implemented by *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisCheck reports unhealthy when the redis server does not answer PING.
func RedisCheck(c RedisPinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := c.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "redis ping")
		}
		return nil
	}
}

// DropCheck reports unhealthy when the counter returned by dropped grew by
// more than tolerance since the previous run.
func DropCheck(dropped func() int64, tolerance int64) CheckFunc {
	var (
		mu   sync.Mutex
		last int64
	)
	return func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()

		now := dropped()
		delta := now - last
		last = now
		if delta > tolerance {
			return errors.Errorf("%d events dropped since last check", delta)
		}
		return nil
	}
}

// GoroutineCountCheck reports unhealthy when the number of goroutines
// exceeds threshold.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}
