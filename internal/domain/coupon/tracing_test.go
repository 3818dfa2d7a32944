package coupon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTraced_Passthrough(t *testing.T) {
	store := newMockStore(&Coupon{Code: "T", Type: TypePercentage, Value: d("50"), Quantity: ptr(1)})
	svc, rec := newTestService(store)
	e := NewTraced(svc, noop.NewTracerProvider())

	got, err := e.Calculate(context.Background(), &Coupon{Code: "T", Type: TypePercentage, Value: d("50")}, d("80"))
	require.NoError(t, err)
	assert.True(t, d("40").Equal(got))

	_, err = e.Redeem(context.Background(), "T", user("1"), nil)
	require.NoError(t, err)

	_, err = e.Redeem(context.Background(), "T", user("2"), nil)
	assert.ErrorIs(t, err, ErrOverQuantity)

	assert.Equal(t, []EventName{EventVerified, EventRedeemed, EventOverQuantity}, rec.names())

	// Holder works over the decorator too.
	used, err := For(e, user("1")).IsCouponAlreadyUsed(context.Background(), "T")
	require.NoError(t, err)
	assert.True(t, used)
}
