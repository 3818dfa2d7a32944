package coupon

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies coupon failures so callers can branch on it without
// relying on error type hierarchies.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that are not coupon errors.
	KindUnknown Kind = iota
	// KindInvalidCoupon means no coupon exists for the code.
	KindInvalidCoupon
	// KindCouponDisabled means the coupon is switched off.
	KindCouponDisabled
	// KindCouponExpired means the current time is at or past expires_at.
	KindCouponExpired
	// KindOverQuantity means the global quantity is exhausted.
	KindOverQuantity
	// KindNotAllowedToRedeem means the coupon is assigned to another redeemer.
	KindNotAllowedToRedeem
	// KindOverLimit means the redeemer has used the coupon too many times.
	KindOverLimit
	// KindInvalidCouponType means the calculation strategy is unknown.
	KindInvalidCouponType
	// KindInvalidCouponValue means the coupon value is not positive.
	KindInvalidCouponValue
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindInvalidCoupon:      "invalid_coupon",
	KindCouponDisabled:     "coupon_disabled",
	KindCouponExpired:      "coupon_expired",
	KindOverQuantity:       "over_quantity",
	KindNotAllowedToRedeem: "not_allowed_to_redeem",
	KindOverLimit:          "over_limit",
	KindInvalidCouponType:  "invalid_coupon_type",
	KindInvalidCouponValue: "invalid_coupon_value",
}

var kindMessages = [...]string{
	KindUnknown:            "coupon error",
	KindInvalidCoupon:      "invalid coupon code",
	KindCouponDisabled:     "coupon is disabled",
	KindCouponExpired:      "coupon expired",
	KindOverQuantity:       "coupon is over quantity",
	KindNotAllowedToRedeem: "coupon is not allowed to be redeemed by this redeemer",
	KindOverLimit:          "coupon is over limit for this redeemer",
	KindInvalidCouponType:  "invalid coupon type",
	KindInvalidCouponValue: "coupon value must be greater than zero",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Error is a coupon failure tagged with its Kind.
type Error struct {
	Kind Kind
	// Code is the coupon code involved, if known.
	Code string
}

func (e *Error) Error() string {
	msg := kindMessages[KindUnknown]
	if e.Kind > 0 && int(e.Kind) < len(kindMessages) {
		msg = kindMessages[e.Kind]
	}
	if e.Code == "" {
		return msg
	}
	return fmt.Sprintf("%s: %q", msg, e.Code)
}

// Is reports whether target is a coupon *Error of the same Kind, so the
// package sentinels match errors carrying a code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError returns a coupon *Error of the given kind for code.
func NewError(kind Kind, code string) error {
	return &Error{Kind: kind, Code: code}
}

// Sentinels for errors.Is matching.
var (
	ErrInvalidCoupon      = &Error{Kind: KindInvalidCoupon}
	ErrCouponDisabled     = &Error{Kind: KindCouponDisabled}
	ErrCouponExpired      = &Error{Kind: KindCouponExpired}
	ErrOverQuantity       = &Error{Kind: KindOverQuantity}
	ErrNotAllowedToRedeem = &Error{Kind: KindNotAllowedToRedeem}
	ErrOverLimit          = &Error{Kind: KindOverLimit}
	ErrInvalidCouponType  = &Error{Kind: KindInvalidCouponType}
	ErrInvalidCouponValue = &Error{Kind: KindInvalidCouponValue}
)

var (
	// ErrNotFound is returned by a Repository when no coupon has the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned by a Repository when the code is taken.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// KindOf returns the Kind of the first coupon *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsCouponError reports whether err is any coupon *Error. Callers use it
// to collapse all kinds into one category for presentation.
func IsCouponError(err error) bool {
	return KindOf(err) != KindUnknown
}
