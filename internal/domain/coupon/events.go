package coupon

import (
	"context"
	"time"
)

// EventName identifies a notification emitted by the engines.
type EventName string

const (
	EventVerified           EventName = "CouponVerified"
	EventRedeemed           EventName = "CouponRedeemed"
	EventDisabled           EventName = "CouponDisabled"
	EventExpired            EventName = "CouponExpired"
	EventOverQuantity       EventName = "CouponIsOverQuantity"
	EventOverLimit          EventName = "CouponIsOverLimit"
	EventNotAllowedToRedeem EventName = "NotAllowedToRedeem"
	EventFailedToRedeem     EventName = "FailedToRedeemCoupon"
)

// Event carries the coupon and the redeemers involved in a notification.
// Coupon is a snapshot; sinks must not mutate it.
type Event struct {
	Name     EventName
	Coupon   Coupon
	Redeemer *Ref
	// OnBehalfOf is set for redemption events made for another entity.
	OnBehalfOf *Ref
	At         time.Time
}

// Notifier receives events. Implementations must not block the caller
// for long and have no way to fail the operation that emitted the event.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(context.Context, Event) {})

func newEvent(name EventName, c *Coupon, r Redeemer, onBehalfOf Redeemer, now time.Time) Event {
	e := Event{Name: name, Coupon: *c, At: now}
	if r != nil {
		ref := RefOf(r)
		e.Redeemer = &ref
	}
	if onBehalfOf != nil {
		ref := RefOf(onBehalfOf)
		e.OnBehalfOf = &ref
	}
	return e
}
