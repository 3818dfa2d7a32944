// Package coupon implements verification, redemption, and discount
// calculation for promotional coupon codes.
package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type selects the calculation strategy of a coupon.
type Type string

const (
	// TypeSubtraction subtracts the coupon value from the base amount. An
	// empty Type behaves as subtraction.
	TypeSubtraction Type = "subtraction"
	// TypePercentage takes value percent off the base amount.
	TypePercentage Type = "percentage"
	// TypeFixed sets the final amount to the coupon value.
	TypeFixed Type = "fixed"
)

// Coupon is a discount code with its validity and usage constraints.
type Coupon struct {
	ID    int64
	Code  string
	Type  Type
	Value decimal.Decimal
	// IsEnabled defaults to true when nil.
	IsEnabled *bool
	// Quantity is the number of redemptions left overall; nil is unlimited.
	Quantity *int
	// Limit caps how many times a single redeemer may redeem the code.
	Limit     *int
	ExpiresAt *time.Time
	// RedeemerType and RedeemerID restrict who may redeem the coupon.
	RedeemerType string
	RedeemerID   string
	Data         map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsExpired reports whether the coupon has an expiry at or before now.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Enabled reports whether the coupon is switched on.
func (c *Coupon) Enabled() bool {
	if c.IsEnabled == nil {
		return true
	}
	return *c.IsEnabled
}

// IsDisabled is the negation of Enabled.
func (c *Coupon) IsDisabled() bool {
	return !c.Enabled()
}

// IsOverQuantity reports whether a set quantity has run out.
func (c *Coupon) IsOverQuantity() bool {
	return c.Quantity != nil && *c.Quantity <= 0
}

// IsDisposable reports whether the coupon is single-use per redeemer.
func (c *Coupon) IsDisposable() bool {
	return c.Limit != nil && *c.Limit == 1
}

// IsOverLimitFor reports whether used redemptions reach the limit.
func (c *Coupon) IsOverLimitFor(used int) bool {
	return c.Limit != nil && used >= *c.Limit
}

// IsOverLimit combines the disposable rule with the numeric limit: a
// disposable coupon that the redeemer already used is over limit even if
// the count and the limit disagree.
func (c *Coupon) IsOverLimit(used int) bool {
	return (c.IsDisposable() && used > 0) || c.IsOverLimitFor(used)
}

// IsMorphFilled reports whether the coupon is assigned to one entity.
func (c *Coupon) IsMorphFilled() bool {
	return c.RedeemerType != "" && c.RedeemerID != ""
}

// IsOnlyRedeemerTypeFilled reports whether the coupon is assigned to a
// whole redeemer type.
func (c *Coupon) IsOnlyRedeemerTypeFilled() bool {
	return c.RedeemerType != "" && c.RedeemerID == ""
}

// IsAllowedToRedeemBy applies the assignment restriction.
func (c *Coupon) IsAllowedToRedeemBy(r Redeemer) bool {
	switch {
	case c.IsMorphFilled():
		return r != nil && c.Assignee().SameAs(r)
	case c.IsOnlyRedeemerTypeFilled():
		return r != nil && r.RedeemerType() == c.RedeemerType
	default:
		return true
	}
}

// Assignee returns the redeemer the coupon is assigned to, which may be
// zero or type-only.
func (c *Coupon) Assignee() Ref {
	return Ref{Type: c.RedeemerType, ID: c.RedeemerID}
}

// Redemption is the append-only record of one successful redemption.
type Redemption struct {
	ID       string
	CouponID int64
	Code     string
	Redeemer Ref
	// OnBehalfOf is the entity the coupon was redeemed for, if any.
	OnBehalfOf *Ref
	RedeemedAt time.Time
}

// Repository persists coupons.
type Repository interface {
	// FindByCode returns ErrNotFound when no coupon has the code.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// Create returns ErrDuplicateCode when the code is taken.
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	// Redeem stores rec and decrements a set quantity as one atomic unit.
	// It fails with ErrOverQuantity when the quantity is exhausted and with
	// ErrOverLimit when the redeemer reached the coupon limit, both judged
	// under the same lock as the write. On success c.Quantity holds the
	// stored value.
	Redeem(ctx context.Context, c *Coupon, rec *Redemption) error
}

// RedemptionRepository queries redemption history.
type RedemptionRepository interface {
	Count(ctx context.Context, code string, r Ref) (int, error)
	Exists(ctx context.Context, code string, r Ref) (bool, error)
	// ListByRedeemer returns the redeemer's records, newest first.
	ListByRedeemer(ctx context.Context, r Ref) ([]Redemption, error)
}

// Clock returns the current time.
type Clock func() time.Time
