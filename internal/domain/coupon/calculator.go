package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
	two     = decimal.NewFromInt(2)
)

// RoundingMode decides how a value exactly halfway between two
// representable results is rounded.
type RoundingMode string

const (
	// RoundHalfUp rounds halves away from zero.
	RoundHalfUp RoundingMode = "half_up"
	// RoundHalfDown rounds halves toward zero.
	RoundHalfDown RoundingMode = "half_down"
	// RoundHalfEven rounds halves to the even neighbour.
	RoundHalfEven RoundingMode = "half_even"
	// RoundHalfOdd rounds halves to the odd neighbour.
	RoundHalfOdd RoundingMode = "half_odd"
)

// ParseRoundingMode validates s. An empty string yields RoundHalfUp.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch m := RoundingMode(s); m {
	case "":
		return RoundHalfUp, nil
	case RoundHalfUp, RoundHalfDown, RoundHalfEven, RoundHalfOdd:
		return m, nil
	default:
		return "", errors.Errorf("unknown rounding mode %q", s)
	}
}

// CalcConfig holds the post-processing applied to every calculation.
type CalcConfig struct {
	// Precision is the number of decimal places kept.
	Precision int32
	Mode      RoundingMode
	// Floor is the minimum result. It is applied after rounding and is not
	// rounded itself.
	Floor decimal.Decimal
}

// DefaultCalcConfig rounds half-up to cents and clamps at zero.
func DefaultCalcConfig() CalcConfig {
	return CalcConfig{
		Precision: 2,
		Mode:      RoundHalfUp,
		Floor:     decimal.Zero,
	}
}

// Strategy maps a base amount and a coupon value to a raw final amount.
type Strategy func(base, value decimal.Decimal) decimal.Decimal

// Subtract takes value off base.
func Subtract(base, value decimal.Decimal) decimal.Decimal {
	return base.Sub(value)
}

// Percentage takes value percent off base.
func Percentage(base, value decimal.Decimal) decimal.Decimal {
	return base.Sub(base.Mul(value).Div(hundred))
}

// FixedPrice ignores base and returns value.
func FixedPrice(_, value decimal.Decimal) decimal.Decimal {
	return value
}

// Calculator applies a coupon to a base amount.
type Calculator struct {
	cfg        CalcConfig
	strategies map[Type]Strategy
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithStrategy registers or replaces the strategy for t.
func WithStrategy(t Type, s Strategy) CalculatorOption {
	return func(c *Calculator) {
		c.strategies[t] = s
	}
}

// NewCalculator returns a Calculator with the three built-in strategies.
func NewCalculator(cfg CalcConfig, opts ...CalculatorOption) *Calculator {
	if cfg.Mode == "" {
		cfg.Mode = RoundHalfUp
	}
	c := &Calculator{
		cfg: cfg,
		strategies: map[Type]Strategy{
			TypeSubtraction: Subtract,
			TypePercentage:  Percentage,
			TypeFixed:       FixedPrice,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the post-processing settings.
func (c *Calculator) Config() CalcConfig {
	return c.cfg
}

// Calculate returns the amount left after applying cp to base. The value
// check runs before the type is looked at.
func (c *Calculator) Calculate(cp *Coupon, base decimal.Decimal) (decimal.Decimal, error) {
	if !cp.Value.IsPositive() {
		return decimal.Zero, NewError(KindInvalidCouponValue, cp.Code)
	}

	t := cp.Type
	if t == "" {
		t = TypeSubtraction
	}
	strategy, ok := c.strategies[t]
	if !ok {
		return decimal.Zero, NewError(KindInvalidCouponType, cp.Code)
	}

	amount := Round(strategy(base, cp.Value), c.cfg.Precision, c.cfg.Mode)
	return decimal.Max(amount, c.cfg.Floor), nil
}

// Round rounds d to places decimal places using mode.
func Round(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundHalfEven:
		return d.RoundBank(places)
	case RoundHalfDown, RoundHalfOdd:
	default:
		return d.Round(places)
	}

	shifted := d.Shift(places)
	whole := shifted.Truncate(0)
	away := decimal.NewFromInt(1)
	if shifted.IsNegative() {
		away = away.Neg()
	}

	switch shifted.Sub(whole).Abs().Cmp(half) {
	case -1:
	case 1:
		whole = whole.Add(away)
	default:
		if mode == RoundHalfOdd && whole.Mod(two).IsZero() {
			whole = whole.Add(away)
		}
	}
	return whole.Shift(-places)
}
