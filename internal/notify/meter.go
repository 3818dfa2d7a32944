package notify

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/couponables/internal/domain/coupon"
)

const meterName = "github.com/xenking/couponables/internal/notify"

// Meter counts events by name.
type Meter struct {
	events metric.Int64Counter
}

var _ coupon.Notifier = (*Meter)(nil)

// NewMeter registers the coupon.events counter on mp.
func NewMeter(mp metric.MeterProvider) (*Meter, error) {
	counter, err := mp.Meter(meterName).Int64Counter("coupon.events",
		metric.WithDescription("Coupon notifications by event name"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create coupon.events counter")
	}
	return &Meter{events: counter}, nil
}

// Notify implements coupon.Notifier.
func (m *Meter) Notify(ctx context.Context, e coupon.Event) {
	attrs := []attribute.KeyValue{attribute.String("event", string(e.Name))}
	if e.Coupon.Type != "" {
		attrs = append(attrs, attribute.String("coupon.type", string(e.Coupon.Type)))
	}
	m.events.Add(ctx, 1, metric.WithAttributes(attrs...))
}
