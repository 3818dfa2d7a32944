package notify

import (
	"context"

	"github.com/xenking/couponables/internal/domain/coupon"
)

// Multi delivers every event to each sink in order.
type Multi []coupon.Notifier

var _ coupon.Notifier = Multi(nil)

// Notify implements coupon.Notifier.
func (m Multi) Notify(ctx context.Context, e coupon.Event) {
	for _, n := range m {
		n.Notify(ctx, e)
	}
}
