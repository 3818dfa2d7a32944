package coupon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine is the full coupon API. *Service implements it; decorators such
// as Traced wrap it.
type Engine interface {
	// Find loads a coupon without checking it.
	Find(ctx context.Context, code string) (*Coupon, error)
	Verify(ctx context.Context, code string, r Redeemer) (*Coupon, error)
	BasicChecks(ctx context.Context, c *Coupon, r Redeemer) error
	RedeemerChecks(ctx context.Context, c *Coupon, r Redeemer) error
	VerifyOr(ctx context.Context, code string, r Redeemer, fallback Fallback) (*Coupon, error)

	Apply(ctx context.Context, c *Coupon, r, onBehalfOf Redeemer) (*Coupon, error)
	Redeem(ctx context.Context, code string, r, onBehalfOf Redeemer) (*Coupon, error)
	RedeemOr(ctx context.Context, code string, r, onBehalfOf Redeemer, fallback Fallback) (*Coupon, error)

	IsRedeemedBy(ctx context.Context, c *Coupon, r Redeemer) (bool, error)
	IsOverLimitFor(ctx context.Context, c *Coupon, r Redeemer) (bool, error)
	IsOverLimit(ctx context.Context, c *Coupon, r Redeemer) (bool, error)
	History(ctx context.Context, r Redeemer) ([]Redemption, error)

	Calculate(ctx context.Context, c *Coupon, base decimal.Decimal) (decimal.Decimal, error)

	Create(ctx context.Context, c *Coupon) error
	GenerateBatch(ctx context.Context, count, length int, attrs Attributes) ([]*Coupon, error)
	GenerateFor(ctx context.Context, r Redeemer, code string, attrs Attributes) (*Coupon, error)
}

// Fallback produces a result when verification or redemption fails.
type Fallback func(code string, err error) (*Coupon, error)

// Service implements Engine on top of the storage interfaces. It keeps no
// state between calls; every operation loads what it needs.
type Service struct {
	coupons     Repository
	redemptions RedemptionRepository
	notifier    Notifier
	calc        *Calculator
	lg          *zap.Logger

	now         Clock
	newID       func() string
	codes       CodeSource
	maxAttempts int
}

var _ Engine = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the event sink. Events are dropped by default.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithCalculator replaces the default Calculator.
func WithCalculator(c *Calculator) Option {
	return func(s *Service) { s.calc = c }
}

// WithClock replaces time.Now.
func WithClock(now Clock) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for sink failures.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Service) { s.lg = lg }
}

// WithCodeSource replaces the random code generator.
func WithCodeSource(src CodeSource) Option {
	return func(s *Service) { s.codes = src }
}

// WithMaxAttempts sets how many codes GenerateBatch tries per coupon
// before giving up on collisions.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService creates a Service backed by the given repositories.
func NewService(coupons Repository, redemptions RedemptionRepository, opts ...Option) *Service {
	s := &Service{
		coupons:     coupons,
		redemptions: redemptions,
		notifier:    Discard,
		calc:        NewCalculator(DefaultCalcConfig()),
		lg:          zap.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
		codes:       RandomCode,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculate applies c to base with the configured Calculator.
func (s *Service) Calculate(_ context.Context, c *Coupon, base decimal.Decimal) (decimal.Decimal, error) {
	return s.calc.Calculate(c, base)
}

// emit hands an event to the notifier. A panicking sink is logged and
// otherwise ignored.
func (s *Service) emit(ctx context.Context, name EventName, c *Coupon, r, onBehalfOf Redeemer) {
	defer func() {
		if rec := recover(); rec != nil {
			s.lg.Error("Notifier panicked",
				zap.String("event", string(name)),
				zap.String("code", c.Code),
				zap.Any("panic", rec),
			)
		}
	}()
	s.notifier.Notify(ctx, newEvent(name, c, r, onBehalfOf, s.now()))
}
