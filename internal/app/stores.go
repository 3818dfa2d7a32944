package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/domain/auth"
	"github.com/xenking/couponables/internal/domain/coupon"
	"github.com/xenking/couponables/internal/storage/memory"
	"github.com/xenking/couponables/internal/storage/postgres"
	"github.com/xenking/couponables/pkg/health"
)

type apiKeyStore interface {
	auth.Repository
	Upsert(ctx context.Context, info auth.APIKeyInfo) error
}

type stores struct {
	coupons     coupon.Repository
	redemptions coupon.RedemptionRepository
	apikeys     apiKeyStore
	pool        *pgxpool.Pool
}

// openStores connects the configured backend and registers its readiness
// check.
func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health) (*stores, error) {
	if cfg.Store == StoreMemory {
		lg.Warn("Using in-memory store; data is lost on restart")
		mem := memory.New()
		return &stores{coupons: mem, redemptions: mem, apikeys: memory.NewAPIKeys()}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	h.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	return &stores{
		coupons:     postgres.NewCouponRepository(pool),
		redemptions: postgres.NewRedemptionRepository(pool),
		apikeys:     postgres.NewAPIKeyRepository(pool),
		pool:        pool,
	}, nil
}

// SeedAdminKey stores key with the manage_coupons and redeem_coupons scopes.
func (s *stores) SeedAdminKey(ctx context.Context, pepper []byte, key string) error {
	return s.apikeys.Upsert(ctx, auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.HashKey(pepper, key),
		Name:    "bootstrap admin",
		Scopes:  []string{auth.ScopeManageCoupons, auth.ScopeRedeemCoupons},
	})
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
