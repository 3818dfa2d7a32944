package notify

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/domain/coupon"
)

// DefaultChannel is the pub/sub channel events are published to.
const DefaultChannel = "couponables.events"

// Publisher is the subset of redis.UniversalClient used by Redis.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Redis publishes events as JSON documents on a Redis channel. Publish
// failures are logged and dropped.
type Redis struct {
	client  Publisher
	channel string
	lg      *zap.Logger
}

var _ coupon.Notifier = (*Redis)(nil)

// NewRedis returns a Redis sink publishing to channel.
func NewRedis(client Publisher, channel string, lg *zap.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Redis{client: client, channel: channel, lg: lg}
}

// Dial parses a redis:// URL and returns a connected client.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Notify implements coupon.Notifier.
func (r *Redis) Notify(ctx context.Context, e coupon.Event) {
	if err := r.client.Publish(ctx, r.channel, EncodeEvent(e)).Err(); err != nil {
		r.lg.Warn("Publish coupon event",
			zap.String("event", string(e.Name)),
			zap.String("code", e.Coupon.Code),
			zap.String("channel", r.channel),
			zap.Error(err),
		)
	}
}
