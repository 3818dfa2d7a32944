package coupon

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrRedeemerRequired is returned by Apply when no redeemer is given.
var ErrRedeemerRequired = errors.New("redeemer is required")

// Apply records the redemption of c by r and consumes one unit of its
// quantity. It does not verify the coupon; call Verify first or use Redeem.
//
// The record insert and the decrement are one atomic store operation. On
// failure a FailedToRedeemCoupon event is emitted and the store error is
// returned as is.
func (s *Service) Apply(ctx context.Context, c *Coupon, r, onBehalfOf Redeemer) (*Coupon, error) {
	if r == nil {
		return nil, ErrRedeemerRequired
	}

	rec := &Redemption{
		ID:         s.newID(),
		CouponID:   c.ID,
		Code:       c.Code,
		Redeemer:   RefOf(r),
		RedeemedAt: s.now(),
	}
	if onBehalfOf != nil {
		ref := RefOf(onBehalfOf)
		rec.OnBehalfOf = &ref
	}

	if err := s.coupons.Redeem(ctx, c, rec); err != nil {
		s.emit(ctx, EventFailedToRedeem, c, r, onBehalfOf)
		return nil, err
	}

	s.emit(ctx, EventRedeemed, c, r, onBehalfOf)
	return c, nil
}

// Redeem verifies the coupon for r and applies it.
func (s *Service) Redeem(ctx context.Context, code string, r, onBehalfOf Redeemer) (*Coupon, error) {
	c, err := s.Verify(ctx, code, r)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, c, r, onBehalfOf)
}

// RedeemOr is Redeem that hands failures to fallback. A nil fallback
// returns the error.
func (s *Service) RedeemOr(ctx context.Context, code string, r, onBehalfOf Redeemer, fallback Fallback) (*Coupon, error) {
	c, err := s.Redeem(ctx, code, r, onBehalfOf)
	if err != nil && fallback != nil {
		return fallback(code, err)
	}
	return c, err
}

// History returns r's redemptions, newest first.
func (s *Service) History(ctx context.Context, r Redeemer) ([]Redemption, error) {
	list, err := s.redemptions.ListByRedeemer(ctx, RefOf(r))
	if err != nil {
		return nil, errors.Wrap(err, "list redemptions")
	}
	return list, nil
}
