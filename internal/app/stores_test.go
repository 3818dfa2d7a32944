package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/domain/auth"
	"github.com/xenking/couponables/pkg/health"
)

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()
	st, err := openStores(ctx, zap.NewNop(), &Config{Store: StoreMemory}, health.New())
	require.NoError(t, err)
	defer st.Close()

	assert.Nil(t, st.pool)
	require.NotNil(t, st.coupons)
	require.NotNil(t, st.redemptions)

	pepper := []byte("pepper")
	require.NoError(t, st.SeedAdminKey(ctx, pepper, "bootstrap"))

	info, err := st.apikeys.FindByHash(ctx, auth.HashKey(pepper, "bootstrap"))
	require.NoError(t, err)
	assert.Equal(t, "admin", info.ID)
	assert.True(t, info.HasScope(auth.ScopeManageCoupons))
	assert.True(t, info.HasScope(auth.ScopeRedeemCoupons))

	// Seeding again rotates the key.
	require.NoError(t, st.SeedAdminKey(ctx, pepper, "rotated"))
	_, err = st.apikeys.FindByHash(ctx, auth.HashKey(pepper, "bootstrap"))
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
