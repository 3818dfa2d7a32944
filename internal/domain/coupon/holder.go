package coupon

import "context"

// Holder binds an Engine to one redeemer, giving that entity the coupon
// operations it owns.
type Holder struct {
	engine Engine
	ref    Ref
}

// For returns the Holder of r.
func For(e Engine, r Redeemer) *Holder {
	return &Holder{engine: e, ref: RefOf(r)}
}

// Ref returns the bound redeemer.
func (h *Holder) Ref() Ref { return h.ref }

// VerifyCoupon verifies code for the holder.
func (h *Holder) VerifyCoupon(ctx context.Context, code string) (*Coupon, error) {
	return h.engine.Verify(ctx, code, h.ref)
}

// RedeemCoupon verifies and applies code for the holder. onBehalfOf may be
// nil.
func (h *Holder) RedeemCoupon(ctx context.Context, code string, onBehalfOf Redeemer) (*Coupon, error) {
	return h.engine.Redeem(ctx, code, h.ref, onBehalfOf)
}

// VerifyCouponOr is VerifyCoupon with a fallback.
func (h *Holder) VerifyCouponOr(ctx context.Context, code string, fallback Fallback) (*Coupon, error) {
	return h.engine.VerifyOr(ctx, code, h.ref, fallback)
}

// RedeemCouponOr is RedeemCoupon with a fallback.
func (h *Holder) RedeemCouponOr(ctx context.Context, code string, fallback Fallback) (*Coupon, error) {
	return h.engine.RedeemOr(ctx, code, h.ref, nil, fallback)
}

// RedeemBy lets r redeem code in the context of the holder: r owns the
// redemption and the holder is recorded as the entity it was made for.
func (h *Holder) RedeemBy(ctx context.Context, r Redeemer, code string) (*Coupon, error) {
	return h.engine.Redeem(ctx, code, r, h.ref)
}

// IsCouponAlreadyUsed reports whether the holder redeemed code before. An
// unknown code has never been used.
func (h *Holder) IsCouponAlreadyUsed(ctx context.Context, code string) (bool, error) {
	c, err := h.engine.Find(ctx, code)
	if err != nil {
		if KindOf(err) == KindInvalidCoupon {
			return false, nil
		}
		return false, err
	}
	return h.engine.IsRedeemedBy(ctx, c, h.ref)
}

// IsCouponOverLimit reports whether the holder reached the limit of code.
// An unknown code is never over limit.
func (h *Holder) IsCouponOverLimit(ctx context.Context, code string) (bool, error) {
	c, err := h.engine.Find(ctx, code)
	if err != nil {
		if KindOf(err) == KindInvalidCoupon {
			return false, nil
		}
		return false, err
	}
	return h.engine.IsOverLimitFor(ctx, c, h.ref)
}

// Coupons returns the holder's redemption history, newest first.
func (h *Holder) Coupons(ctx context.Context) ([]Redemption, error) {
	return h.engine.History(ctx, h.ref)
}
