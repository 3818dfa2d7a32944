package coupon

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

type mockStore struct {
	mu      sync.Mutex
	coupons map[string]*Coupon
	records []Redemption
	nextID  int64

	findErr   error
	createErr error
	redeemErr error
}

func newMockStore(coupons ...*Coupon) *mockStore {
	s := &mockStore{coupons: make(map[string]*Coupon)}
	for _, c := range coupons {
		s.nextID++
		c.ID = s.nextID
		s.coupons[c.Code] = c
	}
	return s
}

func (s *mockStore) FindByCode(_ context.Context, code string) (*Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	c, ok := s.coupons[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *mockStore) Create(_ context.Context, c *Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.coupons[c.Code]; ok {
		return ErrDuplicateCode
	}
	s.nextID++
	c.ID = s.nextID
	cp := *c
	s.coupons[c.Code] = &cp
	return nil
}

func (s *mockStore) Update(_ context.Context, c *Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[c.Code]; !ok {
		return ErrNotFound
	}
	cp := *c
	s.coupons[c.Code] = &cp
	return nil
}

func (s *mockStore) Redeem(_ context.Context, c *Coupon, rec *Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redeemErr != nil {
		return s.redeemErr
	}
	stored, ok := s.coupons[c.Code]
	if !ok {
		return ErrNotFound
	}
	if stored.IsOverQuantity() {
		return NewError(KindOverQuantity, c.Code)
	}
	if stored.IsOverLimit(s.countLocked(c.Code, rec.Redeemer)) {
		return NewError(KindOverLimit, c.Code)
	}
	s.records = append(s.records, *rec)
	if stored.Quantity != nil {
		q := *stored.Quantity - 1
		stored.Quantity = &q
		c.Quantity = &q
	}
	return nil
}

func (s *mockStore) countLocked(code string, r Ref) int {
	n := 0
	for _, rec := range s.records {
		if rec.Code == code && rec.Redeemer == r {
			n++
		}
	}
	return n
}

func (s *mockStore) Count(_ context.Context, code string, r Ref) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(code, r), nil
}

func (s *mockStore) Exists(_ context.Context, code string, r Ref) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(code, r) > 0, nil
}

func (s *mockStore) ListByRedeemer(_ context.Context, r Ref) ([]Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Redemption
	for _, rec := range s.records {
		if rec.Redeemer == r {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RedeemedAt.After(out[j].RedeemedAt)
	})
	return out, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) names() []EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventName, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// --- Helpers ---

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr[T any](v T) *T {
	return &v
}

func user(id string) Ref {
	return Ref{Type: "user", ID: id}
}

// tickingClock advances one second per call so redemption order is stable.
func tickingClock() Clock {
	var mu sync.Mutex
	now := testNow
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestService(store *mockStore, opts ...Option) (*Service, *recorder) {
	rec := &recorder{}
	base := []Option{
		WithNotifier(rec),
		WithClock(func() time.Time { return testNow }),
	}
	return NewService(store, store, append(base, opts...)...), rec
}
