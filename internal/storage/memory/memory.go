// Package memory implements the coupon stores in process memory. It backs
// tests and single-instance deployments without a database.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/xenking/couponables/internal/domain/coupon"
)

var (
	_ coupon.Repository           = (*Store)(nil)
	_ coupon.RedemptionRepository = (*Store)(nil)
)

type redeemKey struct {
	code string
	ref  coupon.Ref
}

// Store keeps coupons and redemptions behind a single mutex. Returned
// coupons are copies.
type Store struct {
	mu      sync.Mutex
	coupons map[string]*coupon.Coupon
	records []coupon.Redemption
	counts  map[redeemKey]int
	nextID  int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		coupons: make(map[string]*coupon.Coupon),
		counts:  make(map[redeemKey]int),
	}
}

// FindByCode implements coupon.Repository.
func (s *Store) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return clone(c), nil
}

// Create implements coupon.Repository.
func (s *Store) Create(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.coupons[c.Code]; ok {
		return coupon.ErrDuplicateCode
	}
	s.nextID++
	c.ID = s.nextID
	s.coupons[c.Code] = clone(c)
	return nil
}

// Update implements coupon.Repository.
func (s *Store) Update(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.coupons[c.Code]
	if !ok {
		return coupon.ErrNotFound
	}
	stored := clone(c)
	stored.ID = old.ID
	stored.CreatedAt = old.CreatedAt
	s.coupons[c.Code] = stored
	return nil
}

// Redeem implements coupon.Repository. Quantity and limit are judged under
// the store lock, so concurrent calls never oversell.
func (s *Store) Redeem(_ context.Context, c *coupon.Coupon, rec *coupon.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.coupons[c.Code]
	if !ok {
		return coupon.ErrNotFound
	}
	if stored.IsOverQuantity() {
		return coupon.NewError(coupon.KindOverQuantity, c.Code)
	}
	key := redeemKey{code: c.Code, ref: rec.Redeemer}
	if stored.IsOverLimit(s.counts[key]) {
		return coupon.NewError(coupon.KindOverLimit, c.Code)
	}

	rec.CouponID = stored.ID
	s.records = append(s.records, *rec)
	s.counts[key]++

	if stored.Quantity != nil {
		left := *stored.Quantity - 1
		stored.Quantity = &left
		c.Quantity = &left
	}
	stored.UpdatedAt = rec.RedeemedAt
	c.ID = stored.ID
	return nil
}

// Count implements coupon.RedemptionRepository.
func (s *Store) Count(_ context.Context, code string, r coupon.Ref) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[redeemKey{code: code, ref: r}], nil
}

// Exists implements coupon.RedemptionRepository.
func (s *Store) Exists(_ context.Context, code string, r coupon.Ref) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[redeemKey{code: code, ref: r}] > 0, nil
}

// ListByRedeemer implements coupon.RedemptionRepository.
func (s *Store) ListByRedeemer(_ context.Context, r coupon.Ref) ([]coupon.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []coupon.Redemption
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Redeemer == r {
			out = append(out, s.records[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RedeemedAt.After(out[j].RedeemedAt)
	})
	return out, nil
}

func clone(c *coupon.Coupon) *coupon.Coupon {
	cp := *c
	if c.IsEnabled != nil {
		v := *c.IsEnabled
		cp.IsEnabled = &v
	}
	if c.Quantity != nil {
		v := *c.Quantity
		cp.Quantity = &v
	}
	if c.Limit != nil {
		v := *c.Limit
		cp.Limit = &v
	}
	if c.ExpiresAt != nil {
		v := *c.ExpiresAt
		cp.ExpiresAt = &v
	}
	if c.Data != nil {
		cp.Data = maps.Clone(c.Data)
	}
	return &cp
}
