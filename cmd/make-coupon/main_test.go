package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/couponables/internal/domain/coupon"
)

func TestOptions_Coupon(t *testing.T) {
	c, err := options{
		Code:         "my-test-coupon",
		Value:        "50",
		Type:         "percentage",
		Limit:        "3",
		Quantity:     "10",
		ExpiresAt:    "2022-06-25 10:00:00",
		RedeemerType: "users",
		RedeemerID:   "1",
		Data:         `{"campaign":"summer","tier":2}`,
	}.Coupon()
	require.NoError(t, err)

	assert.Equal(t, "my-test-coupon", c.Code)
	assert.Equal(t, coupon.TypePercentage, c.Type)
	assert.True(t, decimal.NewFromInt(50).Equal(c.Value))
	require.NotNil(t, c.Limit)
	assert.Equal(t, 3, *c.Limit)
	require.NotNil(t, c.Quantity)
	assert.Equal(t, 10, *c.Quantity)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, time.Date(2022, 6, 25, 10, 0, 0, 0, time.UTC), *c.ExpiresAt)
	assert.Equal(t, "users", c.RedeemerType)
	assert.Equal(t, "1", c.RedeemerID)
	assert.Equal(t, map[string]any{"campaign": "summer", "tier": int64(2)}, c.Data)
}

func TestOptions_CouponDefaults(t *testing.T) {
	c, err := options{Code: "PLAIN"}.Coupon()
	require.NoError(t, err)

	assert.Equal(t, coupon.TypeSubtraction, c.Type)
	assert.True(t, c.Value.IsZero())
	assert.Nil(t, c.Limit)
	assert.Nil(t, c.Quantity)
	assert.Nil(t, c.ExpiresAt)
	assert.Nil(t, c.Data)
	assert.True(t, c.Enabled())
}

func TestOptions_CouponScalarData(t *testing.T) {
	c, err := options{Code: "X", Data: `"json"`}.Coupon()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": "json"}, c.Data)
}

func TestOptions_CouponErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		opts   options
		errMsg string
	}{
		{"Type", options{Code: "X", Type: "bogo"}, `unknown type "bogo"`},
		{"Value", options{Code: "X", Value: "ten"}, "value"},
		{"Limit", options{Code: "X", Limit: "many"}, "limit"},
		{"Quantity", options{Code: "X", Quantity: "1.5"}, "quantity"},
		{"ExpiresAt", options{Code: "X", ExpiresAt: "tomorrow"}, "expires-at"},
		{"Data", options{Code: "X", Data: "{"}, "data"},
		{"ZeroLimit", options{Code: "X", Limit: "0"}, "limit must be positive"},
		{"RedeemerID", options{Code: "X", RedeemerID: "1"}, "redeemer id requires redeemer type"},
		{"EmptyCode", options{}, "code is required"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Coupon()
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestParseExpiresAt(t *testing.T) {
	for _, s := range []string{"2024-03-01T12:00:00Z", "2024-03-01 12:00:00"} {
		at, err := parseExpiresAt(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), at)
	}

	at, err := parseExpiresAt("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), at)
}
