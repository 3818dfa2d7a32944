package coupon

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBatchSize is the batch size callers use when none is requested.
	DefaultBatchSize = 5
	// DefaultCodeLength is used by GenerateBatch when length is zero.
	DefaultCodeLength = 7
	// DefaultMaxAttempts bounds collision retries per generated coupon.
	DefaultMaxAttempts = 5
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ErrInvalidAttributes is returned for coupons that cannot be stored.
var ErrInvalidAttributes = errors.New("invalid coupon attributes")

// CodeSource returns a new random code of the given length.
type CodeSource func(length int) (string, error)

// RandomCode returns a uniformly random alphanumeric code.
func RandomCode(length int) (string, error) {
	size := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Attributes are optional coupon fields merged over generated defaults.
// Nil fields keep the default.
type Attributes struct {
	Type         *Type
	Value        *decimal.Decimal
	IsEnabled    *bool
	Quantity     *int
	Limit        *int
	ExpiresAt    *time.Time
	RedeemerType *string
	RedeemerID   *string
	Data         map[string]any
}

// Apply copies the set fields onto c.
func (a Attributes) Apply(c *Coupon) {
	if a.Type != nil {
		c.Type = *a.Type
	}
	if a.Value != nil {
		c.Value = *a.Value
	}
	if a.IsEnabled != nil {
		v := *a.IsEnabled
		c.IsEnabled = &v
	}
	if a.Quantity != nil {
		v := *a.Quantity
		c.Quantity = &v
	}
	if a.Limit != nil {
		v := *a.Limit
		c.Limit = &v
	}
	if a.ExpiresAt != nil {
		v := *a.ExpiresAt
		c.ExpiresAt = &v
	}
	if a.RedeemerType != nil {
		c.RedeemerType = *a.RedeemerType
	}
	if a.RedeemerID != nil {
		c.RedeemerID = *a.RedeemerID
	}
	if a.Data != nil {
		c.Data = a.Data
	}
}

// Validate checks the fields a store relies on.
func Validate(c *Coupon) error {
	switch {
	case c.Code == "":
		return errors.Wrap(ErrInvalidAttributes, "code is required")
	case c.Quantity != nil && *c.Quantity < 0:
		return errors.Wrap(ErrInvalidAttributes, "quantity must not be negative")
	case c.Quantity != nil && *c.Quantity > math.MaxInt32:
		return errors.Wrap(ErrInvalidAttributes, "quantity is too large")
	case c.Limit != nil && *c.Limit < 1:
		return errors.Wrap(ErrInvalidAttributes, "limit must be positive")
	case c.Limit != nil && *c.Limit > math.MaxInt32:
		return errors.Wrap(ErrInvalidAttributes, "limit is too large")
	case c.RedeemerID != "" && c.RedeemerType == "":
		return errors.Wrap(ErrInvalidAttributes, "redeemer id requires redeemer type")
	}
	return nil
}

// Create validates and stores c.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	if err := Validate(c); err != nil {
		return err
	}
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	if err := s.coupons.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return err
		}
		return errors.Wrapf(err, "create coupon %q", c.Code)
	}
	return nil
}

// GenerateBatch creates count percentage coupons with random codes of the
// given length, with attrs applied on top. A zero count creates nothing; a
// zero length means DefaultCodeLength. A code that collides with an
// existing one is replaced with a fresh random code, up to the configured
// number of attempts. On failure the coupons created so far are returned
// with the error.
func (s *Service) GenerateBatch(ctx context.Context, count, length int, attrs Attributes) ([]*Coupon, error) {
	if length == 0 {
		length = DefaultCodeLength
	}
	if count < 0 || length < 0 {
		return nil, errors.Wrap(ErrInvalidAttributes, "count and length must be positive")
	}

	created := make([]*Coupon, 0, count)
	for range count {
		c, err := s.generateOne(ctx, length, attrs)
		if err != nil {
			return created, err
		}
		created = append(created, c)
	}
	return created, nil
}

func (s *Service) generateOne(ctx context.Context, length int, attrs Attributes) (*Coupon, error) {
	var lastErr error
	for range s.maxAttempts {
		code, err := s.codes(length)
		if err != nil {
			return nil, errors.Wrap(err, "generate code")
		}

		c := &Coupon{Code: code, Type: TypePercentage}
		attrs.Apply(c)
		c.Code = code

		err = s.Create(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "no free code after %d attempts", s.maxAttempts)
}

// GenerateFor creates a percentage coupon with an explicit code that only
// r may redeem. A taken code fails with ErrDuplicateCode; there is no retry.
func (s *Service) GenerateFor(ctx context.Context, r Redeemer, code string, attrs Attributes) (*Coupon, error) {
	if r == nil {
		return nil, ErrRedeemerRequired
	}
	c := &Coupon{Code: code, Type: TypePercentage}
	attrs.Apply(c)
	c.Code = code
	c.RedeemerType = r.RedeemerType()
	c.RedeemerID = r.RedeemerID()

	if err := s.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
