package coupon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoupon_IsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{name: "no expiry", expiresAt: nil, want: false},
		{name: "in the future", expiresAt: ptr(testNow.Add(time.Hour)), want: false},
		{name: "exactly now", expiresAt: ptr(testNow), want: true},
		{name: "in the past", expiresAt: ptr(testNow.Add(-time.Second)), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Coupon{Code: "X", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, c.IsExpired(testNow))
			assert.Equal(t, tt.want, c.IsExpired(testNow), "repeated call must agree")
		})
	}
}

func TestCoupon_Enabled(t *testing.T) {
	assert.True(t, (&Coupon{}).Enabled(), "nil defaults to enabled")
	assert.True(t, (&Coupon{IsEnabled: ptr(true)}).Enabled())
	assert.False(t, (&Coupon{IsEnabled: ptr(false)}).Enabled())
	assert.True(t, (&Coupon{IsEnabled: ptr(false)}).IsDisabled())
}

func TestCoupon_IsOverQuantity(t *testing.T) {
	assert.False(t, (&Coupon{}).IsOverQuantity(), "nil quantity is unlimited")
	assert.False(t, (&Coupon{Quantity: ptr(1)}).IsOverQuantity())
	assert.True(t, (&Coupon{Quantity: ptr(0)}).IsOverQuantity())
	assert.True(t, (&Coupon{Quantity: ptr(-1)}).IsOverQuantity())
}

func TestCoupon_Limit(t *testing.T) {
	assert.False(t, (&Coupon{}).IsDisposable())
	assert.False(t, (&Coupon{Limit: ptr(2)}).IsDisposable())
	assert.True(t, (&Coupon{Limit: ptr(1)}).IsDisposable())

	c := &Coupon{Limit: ptr(2)}
	assert.False(t, c.IsOverLimitFor(1))
	assert.True(t, c.IsOverLimitFor(2))
	assert.True(t, c.IsOverLimitFor(3))
	assert.False(t, (&Coupon{}).IsOverLimitFor(100), "nil limit is unlimited")

	disposable := &Coupon{Limit: ptr(1)}
	assert.False(t, disposable.IsOverLimit(0))
	assert.True(t, disposable.IsOverLimit(1))
}

func TestCoupon_IsAllowedToRedeemBy(t *testing.T) {
	tests := []struct {
		name   string
		coupon *Coupon
		r      Redeemer
		want   bool
	}{
		{
			name:   "unassigned allows anyone",
			coupon: &Coupon{},
			r:      user("1"),
			want:   true,
		},
		{
			name:   "unassigned allows nil",
			coupon: &Coupon{},
			r:      nil,
			want:   true,
		},
		{
			name:   "assigned to entity allows that entity",
			coupon: &Coupon{RedeemerType: "user", RedeemerID: "1"},
			r:      user("1"),
			want:   true,
		},
		{
			name:   "assigned to entity rejects other id",
			coupon: &Coupon{RedeemerType: "user", RedeemerID: "1"},
			r:      user("2"),
			want:   false,
		},
		{
			name:   "assigned to entity rejects same id of other type",
			coupon: &Coupon{RedeemerType: "user", RedeemerID: "1"},
			r:      Ref{Type: "team", ID: "1"},
			want:   false,
		},
		{
			name:   "assigned to entity rejects nil",
			coupon: &Coupon{RedeemerType: "user", RedeemerID: "1"},
			r:      nil,
			want:   false,
		},
		{
			name:   "assigned to type allows any entity of type",
			coupon: &Coupon{RedeemerType: "user"},
			r:      user("42"),
			want:   true,
		},
		{
			name:   "assigned to type rejects other type",
			coupon: &Coupon{RedeemerType: "user"},
			r:      Ref{Type: "team", ID: "42"},
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.IsAllowedToRedeemBy(tt.r))
		})
	}
}

func TestCoupon_AssignmentShape(t *testing.T) {
	c := &Coupon{RedeemerType: "user", RedeemerID: "1"}
	assert.True(t, c.IsMorphFilled())
	assert.False(t, c.IsOnlyRedeemerTypeFilled())
	assert.Equal(t, user("1"), c.Assignee())

	c = &Coupon{RedeemerType: "user"}
	assert.False(t, c.IsMorphFilled())
	assert.True(t, c.IsOnlyRedeemerTypeFilled())
}

func TestRef(t *testing.T) {
	r := user("7")
	assert.Equal(t, "user:7", r.String())
	assert.True(t, r.SameAs(user("7")))
	assert.False(t, r.SameAs(nil))
	assert.True(t, Ref{}.IsZero())
	assert.Equal(t, r, RefOf(r))
}

func TestErrors(t *testing.T) {
	err := NewError(KindOverLimit, "ABC")
	assert.ErrorIs(t, err, ErrOverLimit)
	assert.NotErrorIs(t, err, ErrOverQuantity)
	assert.Equal(t, KindOverLimit, KindOf(err))
	assert.True(t, IsCouponError(err))
	assert.Contains(t, err.Error(), `"ABC"`)
	assert.Equal(t, "over_limit", KindOverLimit.String())

	assert.Equal(t, KindUnknown, KindOf(ErrNotFound))
	assert.False(t, IsCouponError(ErrNotFound))
}
