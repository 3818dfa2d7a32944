package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/domain/coupon"
)

// Log writes every event to a zap logger. Successful verifications and
// redemptions are logged at info level, rejections at warn.
type Log struct {
	lg *zap.Logger
}

var _ coupon.Notifier = (*Log)(nil)

// NewLog returns a Log sink. A nil logger falls back to the logger carried
// by the event context.
func NewLog(lg *zap.Logger) *Log {
	return &Log{lg: lg}
}

// Notify implements coupon.Notifier.
func (l *Log) Notify(ctx context.Context, e coupon.Event) {
	lg := l.lg
	if lg == nil {
		lg = zctx.From(ctx)
	}

	fields := []zap.Field{
		zap.String("event", string(e.Name)),
		zap.String("code", e.Coupon.Code),
		zap.Time("at", e.At),
	}
	if e.Redeemer != nil {
		fields = append(fields, zap.Stringer("redeemer", e.Redeemer))
	}
	if e.OnBehalfOf != nil {
		fields = append(fields, zap.Stringer("on_behalf_of", e.OnBehalfOf))
	}

	switch e.Name {
	case coupon.EventVerified, coupon.EventRedeemed:
		lg.Info("Coupon event", fields...)
	default:
		lg.Warn("Coupon event", fields...)
	}
}
