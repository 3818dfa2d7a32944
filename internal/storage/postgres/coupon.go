package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/couponables/internal/domain/coupon"
)

const (
	couponColumns = `id, code, type, value, is_enabled, data, quantity, "limit",
		redeemer_type, redeemer_id, expires_at, created_at, updated_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	createCouponSQL = `INSERT INTO coupons (code, type, value, is_enabled, data, quantity, "limit",
		redeemer_type, redeemer_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	updateCouponSQL = `UPDATE coupons SET type = $2, value = $3, is_enabled = $4, data = $5,
		quantity = $6, "limit" = $7, redeemer_type = $8, redeemer_id = $9, expires_at = $10,
		updated_at = $11
		WHERE code = $1`

	lockCouponSQL = `SELECT id, quantity, "limit" FROM coupons WHERE code = $1 FOR UPDATE`

	countForUpdateSQL = `SELECT COUNT(*) FROM couponables
		WHERE coupon_id = $1 AND redeemer_type = $2 AND redeemer_id = $3`

	insertRedemptionSQL = `INSERT INTO couponables (id, coupon_id, redeemer_type, redeemer_id,
		on_behalf_of_type, on_behalf_of_id, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	decrementQuantitySQL = `UPDATE coupons SET quantity = quantity - 1, updated_at = $2
		WHERE id = $1 AND quantity > 0
		RETURNING quantity`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its exact code.
// Returns coupon.ErrNotFound when no coupon has the code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Create inserts c and sets its ID. A taken code yields
// coupon.ErrDuplicateCode.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, createCouponSQL,
		c.Code, string(c.Type), c.Value, c.Enabled(), c.Data,
		int32Ptr(c.Quantity), int32Ptr(c.Limit),
		nullString(c.RedeemerType), nullString(c.RedeemerID), c.ExpiresAt,
		c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update overwrites every mutable column of the coupon with c's code.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.Code, string(c.Type), c.Value, c.Enabled(), c.Data,
		int32Ptr(c.Quantity), int32Ptr(c.Limit),
		nullString(c.RedeemerType), nullString(c.RedeemerID), c.ExpiresAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Redeem locks the coupon row, re-checks quantity and the redeemer's limit,
// inserts rec and decrements a set quantity in one transaction. Concurrent
// redemptions of the same code serialize on the row lock.
func (r *CouponRepository) Redeem(ctx context.Context, c *coupon.Coupon, rec *coupon.Redemption) (rerr error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning redeem tx: %w", err)
	}
	defer func() {
		if rerr != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		id       int64
		quantity *int32
		limit    *int32
	)
	if err := tx.QueryRow(ctx, lockCouponSQL, c.Code).Scan(&id, &quantity, &limit); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrNotFound
		}
		return fmt.Errorf("locking coupon %q: %w", c.Code, err)
	}

	locked := coupon.Coupon{Code: c.Code, Quantity: intPtr(quantity), Limit: intPtr(limit)}
	if locked.IsOverQuantity() {
		return coupon.NewError(coupon.KindOverQuantity, c.Code)
	}
	if locked.Limit != nil {
		var used int
		err := tx.QueryRow(ctx, countForUpdateSQL, id, rec.Redeemer.Type, rec.Redeemer.ID).Scan(&used)
		if err != nil {
			return fmt.Errorf("counting redemptions of %q: %w", c.Code, err)
		}
		if locked.IsOverLimit(used) {
			return coupon.NewError(coupon.KindOverLimit, c.Code)
		}
	}

	var onBehalfType, onBehalfID *string
	if rec.OnBehalfOf != nil {
		onBehalfType, onBehalfID = &rec.OnBehalfOf.Type, &rec.OnBehalfOf.ID
	}
	if _, err := tx.Exec(ctx, insertRedemptionSQL,
		rec.ID, id, rec.Redeemer.Type, rec.Redeemer.ID, onBehalfType, onBehalfID, rec.RedeemedAt,
	); err != nil {
		return fmt.Errorf("inserting redemption of %q: %w", c.Code, err)
	}

	if quantity != nil {
		var left int32
		if err := tx.QueryRow(ctx, decrementQuantitySQL, id, rec.RedeemedAt).Scan(&left); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return coupon.NewError(coupon.KindOverQuantity, c.Code)
			}
			return fmt.Errorf("decrementing quantity of %q: %w", c.Code, err)
		}
		quantity = &left
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing redeem tx: %w", err)
	}

	rec.CouponID = id
	c.ID = id
	c.Quantity = intPtr(quantity)
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		typ          string
		value        decimal.Decimal
		enabled      bool
		quantity     *int32
		limit        *int32
		redeemerType *string
		redeemerID   *string
		expiresAt    *time.Time
	)
	err := row.Scan(
		&c.ID, &c.Code, &typ, &value, &enabled, &c.Data, &quantity, &limit,
		&redeemerType, &redeemerID, &expiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Type = coupon.Type(typ)
	c.Value = value
	c.IsEnabled = &enabled
	c.Quantity = intPtr(quantity)
	c.Limit = intPtr(limit)
	c.RedeemerType = derefString(redeemerType)
	c.RedeemerID = derefString(redeemerID)
	c.ExpiresAt = expiresAt
	return c, err
}
