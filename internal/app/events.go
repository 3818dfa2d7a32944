package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/notify"
	"github.com/xenking/couponables/pkg/health"
)

// eventPipeline fans coupon events out to the log, metrics and, when
// configured, Redis, behind a non-blocking dispatcher.
type eventPipeline struct {
	*notify.Dispatcher
	redis *redis.Client
}

func openEvents(ctx context.Context, lg *zap.Logger, mp metric.MeterProvider, cfg NotifyConfig, h *health.Health) (*eventPipeline, error) {
	meter, err := notify.NewMeter(mp)
	if err != nil {
		return nil, errors.Wrap(err, "create event meter")
	}
	sinks := notify.Multi{notify.NewLog(lg.Named("events")), meter}

	p := &eventPipeline{}
	if cfg.RedisURL != "" {
		client, err := notify.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		p.redis = client
		sinks = append(sinks, notify.NewRedis(client, cfg.Channel, lg.Named("redis")))
		h.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(client))
		lg.Info("Publishing coupon events", zap.String("channel", cfg.Channel))
	}

	p.Dispatcher = notify.NewDispatcher(sinks, cfg.Workers, cfg.QueueSize, lg.Named("dispatcher"))
	p.Dispatcher.Run()
	h.AddLivenessCheck("events", time.Second, health.DropCheck(p.Dropped, int64(cfg.QueueSize)))
	return p, nil
}

// Close delivers queued events and disconnects from Redis.
func (p *eventPipeline) Close() {
	p.Dispatcher.Close()
	if p.redis != nil {
		_ = p.redis.Close()
	}
}
