package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/couponables/internal/domain/coupon"
)

const (
	countRedemptionsSQL = `SELECT COUNT(*) FROM couponables cb
		JOIN coupons c ON c.id = cb.coupon_id
		WHERE c.code = $1 AND cb.redeemer_type = $2 AND cb.redeemer_id = $3`

	existsRedemptionSQL = `SELECT EXISTS (SELECT 1 FROM couponables cb
		JOIN coupons c ON c.id = cb.coupon_id
		WHERE c.code = $1 AND cb.redeemer_type = $2 AND cb.redeemer_id = $3)`

	listRedemptionsSQL = `SELECT cb.id, cb.coupon_id, c.code, cb.redeemer_type, cb.redeemer_id,
		cb.on_behalf_of_type, cb.on_behalf_of_id, cb.redeemed_at
		FROM couponables cb
		JOIN coupons c ON c.id = cb.coupon_id
		WHERE cb.redeemer_type = $1 AND cb.redeemer_id = $2
		ORDER BY cb.redeemed_at DESC, cb.id`
)

var _ coupon.RedemptionRepository = (*RedemptionRepository)(nil)

// RedemptionRepository implements coupon.RedemptionRepository backed by
// PostgreSQL.
type RedemptionRepository struct {
	pool *pgxpool.Pool
}

// NewRedemptionRepository returns a RedemptionRepository that uses the given
// pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Count returns how many times r redeemed code.
func (r *RedemptionRepository) Count(ctx context.Context, code string, ref coupon.Ref) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countRedemptionsSQL, code, ref.Type, ref.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting redemptions of %q by %s: %w", code, ref, err)
	}
	return n, nil
}

// Exists reports whether r redeemed code at least once.
func (r *RedemptionRepository) Exists(ctx context.Context, code string, ref coupon.Ref) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, existsRedemptionSQL, code, ref.Type, ref.ID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking redemption of %q by %s: %w", code, ref, err)
	}
	return ok, nil
}

// ListByRedeemer returns ref's redemptions, newest first.
func (r *RedemptionRepository) ListByRedeemer(ctx context.Context, ref coupon.Ref) ([]coupon.Redemption, error) {
	rows, err := r.pool.Query(ctx, listRedemptionsSQL, ref.Type, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("listing redemptions of %s: %w", ref, err)
	}

	list, err := pgx.CollectRows(rows, scanRedemption)
	if err != nil {
		return nil, fmt.Errorf("listing redemptions of %s: %w", ref, err)
	}
	return list, nil
}

func scanRedemption(row pgx.CollectableRow) (coupon.Redemption, error) {
	var (
		rec          coupon.Redemption
		onBehalfType *string
		onBehalfID   *string
	)
	err := row.Scan(
		&rec.ID, &rec.CouponID, &rec.Code, &rec.Redeemer.Type, &rec.Redeemer.ID,
		&onBehalfType, &onBehalfID, &rec.RedeemedAt,
	)
	if onBehalfType != nil {
		rec.OnBehalfOf = &coupon.Ref{Type: *onBehalfType, ID: derefString(onBehalfID)}
	}
	return rec, err
}
