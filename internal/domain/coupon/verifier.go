package coupon

import (
	"context"

	"github.com/go-faster/errors"
)

// Find loads the coupon for code. A missing or empty code yields an
// ErrInvalidCoupon error.
func (s *Service) Find(ctx context.Context, code string) (*Coupon, error) {
	if code == "" {
		return nil, NewError(KindInvalidCoupon, code)
	}
	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(KindInvalidCoupon, code)
		}
		return nil, errors.Wrap(err, "find coupon")
	}
	return c, nil
}

// Verify runs every check against the coupon for code and returns it.
// Checks run in a fixed order and stop at the first failure: the
// redeemer-independent checks first, then, when r is not nil, assignment
// before limit. Each failure emits its own event.
func (s *Service) Verify(ctx context.Context, code string, r Redeemer) (*Coupon, error) {
	c, err := s.Find(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.BasicChecks(ctx, c, r); err != nil {
		return nil, err
	}
	if r != nil {
		if err := s.RedeemerChecks(ctx, c, r); err != nil {
			return nil, err
		}
	}

	s.emit(ctx, EventVerified, c, r, nil)
	return c, nil
}

// BasicChecks verifies the coupon is enabled, not expired, and not out of
// quantity. r is only attached to emitted events.
func (s *Service) BasicChecks(ctx context.Context, c *Coupon, r Redeemer) error {
	if c.IsDisabled() {
		s.emit(ctx, EventDisabled, c, r, nil)
		return NewError(KindCouponDisabled, c.Code)
	}
	if c.IsExpired(s.now()) {
		s.emit(ctx, EventExpired, c, r, nil)
		return NewError(KindCouponExpired, c.Code)
	}
	if c.IsOverQuantity() {
		s.emit(ctx, EventOverQuantity, c, r, nil)
		return NewError(KindOverQuantity, c.Code)
	}
	return nil
}

// RedeemerChecks verifies r may redeem the coupon and has not reached its
// limit. A nil r has nothing to check.
func (s *Service) RedeemerChecks(ctx context.Context, c *Coupon, r Redeemer) error {
	if r == nil {
		return nil
	}
	if !c.IsAllowedToRedeemBy(r) {
		s.emit(ctx, EventNotAllowedToRedeem, c, r, nil)
		return NewError(KindNotAllowedToRedeem, c.Code)
	}

	over, err := s.IsOverLimit(ctx, c, r)
	if err != nil {
		return err
	}
	if over {
		s.emit(ctx, EventOverLimit, c, r, nil)
		return NewError(KindOverLimit, c.Code)
	}
	return nil
}

// VerifyOr is Verify that hands failures to fallback. A nil fallback
// returns the error.
func (s *Service) VerifyOr(ctx context.Context, code string, r Redeemer, fallback Fallback) (*Coupon, error) {
	c, err := s.Verify(ctx, code, r)
	if err != nil && fallback != nil {
		return fallback(code, err)
	}
	return c, err
}

// IsRedeemedBy reports whether r has any redemption of the coupon.
func (s *Service) IsRedeemedBy(ctx context.Context, c *Coupon, r Redeemer) (bool, error) {
	ok, err := s.redemptions.Exists(ctx, c.Code, RefOf(r))
	if err != nil {
		return false, errors.Wrap(err, "check redemption")
	}
	return ok, nil
}

// IsOverLimitFor reports whether r's redemption count reached the limit.
func (s *Service) IsOverLimitFor(ctx context.Context, c *Coupon, r Redeemer) (bool, error) {
	if c.Limit == nil {
		return false, nil
	}
	used, err := s.redemptions.Count(ctx, c.Code, RefOf(r))
	if err != nil {
		return false, errors.Wrap(err, "count redemptions")
	}
	return c.IsOverLimitFor(used), nil
}

// IsOverLimit is IsOverLimitFor with the disposable rule: a coupon with
// limit 1 is over limit once r used it at all.
func (s *Service) IsOverLimit(ctx context.Context, c *Coupon, r Redeemer) (bool, error) {
	if c.IsDisposable() {
		used, err := s.IsRedeemedBy(ctx, c, r)
		if err != nil {
			return false, err
		}
		if used {
			return true, nil
		}
	}
	return s.IsOverLimitFor(ctx, c, r)
}
