package coupon

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeem_Scenario(t *testing.T) {
	ctx := context.Background()
	store := newMockStore(&Coupon{Code: "SPRING", Type: TypePercentage, Value: d("10"), Quantity: ptr(2), Limit: ptr(1)})
	svc, rec := newTestService(store, WithClock(tickingClock()))

	c, err := svc.Redeem(ctx, "SPRING", user("1"), nil)
	require.NoError(t, err)
	require.NotNil(t, c.Quantity)
	assert.Equal(t, 1, *c.Quantity, "quantity is decremented on the returned coupon")
	assert.Equal(t, []EventName{EventVerified, EventRedeemed}, rec.names())

	// Second redemption by the same user hits the disposable limit.
	_, err = svc.Redeem(ctx, "SPRING", user("1"), nil)
	assert.ErrorIs(t, err, ErrOverLimit)

	// Another user takes the last unit.
	c, err = svc.Redeem(ctx, "SPRING", user("2"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, *c.Quantity)

	_, err = svc.Redeem(ctx, "SPRING", user("3"), nil)
	assert.ErrorIs(t, err, ErrOverQuantity)

	history, err := svc.History(ctx, user("1"))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "SPRING", history[0].Code)
	assert.NotEmpty(t, history[0].ID)
}

func TestRedeem_OnBehalfOf(t *testing.T) {
	store := newMockStore(&Coupon{Code: "GIFT", Value: d("5")})
	svc, rec := newTestService(store)

	_, err := svc.Redeem(context.Background(), "GIFT", user("admin"), Ref{Type: "team", ID: "9"})
	require.NoError(t, err)

	require.Len(t, store.records, 1)
	r := store.records[0]
	assert.Equal(t, user("admin"), r.Redeemer)
	require.NotNil(t, r.OnBehalfOf)
	assert.Equal(t, Ref{Type: "team", ID: "9"}, *r.OnBehalfOf)

	e := rec.last()
	assert.Equal(t, EventRedeemed, e.Name)
	require.NotNil(t, e.OnBehalfOf)
	assert.Equal(t, "team", e.OnBehalfOf.Type)
}

func TestApply_StoreFailure(t *testing.T) {
	store := newMockStore(&Coupon{Code: "C", Value: d("1")})
	store.redeemErr = errors.New("tx aborted")
	svc, rec := newTestService(store)

	c, err := svc.Find(context.Background(), "C")
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), c, user("1"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx aborted")
	assert.Equal(t, []EventName{EventFailedToRedeem}, rec.names())
	assert.Empty(t, store.records)
}

func TestApply_RequiresRedeemer(t *testing.T) {
	store := newMockStore(&Coupon{Code: "C", Value: d("1")})
	svc, _ := newTestService(store)

	_, err := svc.Apply(context.Background(), &Coupon{Code: "C"}, nil, nil)
	assert.ErrorIs(t, err, ErrRedeemerRequired)
}

func TestApply_SkipsVerification(t *testing.T) {
	// Apply trusts its caller; only the store-side limits guard it.
	store := newMockStore(&Coupon{Code: "C", Value: d("1"), IsEnabled: ptr(false)})
	svc, rec := newTestService(store)

	c, err := svc.Find(context.Background(), "C")
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), c, user("1"), nil)
	require.NoError(t, err)
	assert.Equal(t, []EventName{EventRedeemed}, rec.names())
}

func TestRedeem_VerificationFailureRecordsNothing(t *testing.T) {
	store := newMockStore(&Coupon{Code: "C", Value: d("1"), RedeemerType: "user", RedeemerID: "2"})
	svc, rec := newTestService(store)

	_, err := svc.Redeem(context.Background(), "C", user("1"), nil)
	assert.ErrorIs(t, err, ErrNotAllowedToRedeem)
	assert.Empty(t, store.records)
	assert.NotContains(t, rec.names(), EventRedeemed)
	assert.NotContains(t, rec.names(), EventFailedToRedeem)
}

func TestRedeemOr(t *testing.T) {
	store := newMockStore(&Coupon{Code: "C", Value: d("1"), Quantity: ptr(0)})
	svc, _ := newTestService(store)

	called := false
	c, err := svc.RedeemOr(context.Background(), "C", user("1"), nil, func(code string, err error) (*Coupon, error) {
		called = true
		assert.ErrorIs(t, err, ErrOverQuantity)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.True(t, called)
}

func TestRedeem_ConcurrentQuantity(t *testing.T) {
	const quantity = 5
	store := newMockStore(&Coupon{Code: "RUSH", Value: d("1"), Quantity: ptr(quantity)})
	svc, _ := newTestService(store)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Redeem(context.Background(), "RUSH", Ref{Type: "user", ID: string(rune('a' + i))}, nil)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrOverQuantity)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, quantity, success)
	assert.Len(t, store.records, quantity)
	assert.Equal(t, 0, *store.coupons["RUSH"].Quantity)
}
