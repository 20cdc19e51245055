package store

import (
	"context"
	"database/sql"

	"checkout-service/internal/models"
)

// LookupCoupon retrieves a coupon by code.
func (s *Store) LookupCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := s.db.GetContext(ctx, &coupon,
		"SELECT * FROM coupons WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, models.ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsage bumps a coupon's usage counter. The increment is a
// single guarded UPDATE so concurrent checkouts can never push the
// counter past the usage cap: a plain check-then-increment would race.
func (s *Store) IncrementUsage(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE coupons
		SET current_usage_count = current_usage_count + 1
		WHERE code = $1
		  AND (max_usage_count = 0 OR current_usage_count < max_usage_count)`,
		code)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, lookupErr := s.LookupCoupon(ctx, code); lookupErr != nil {
			return lookupErr
		}
		return models.ErrCouponExhausted
	}
	return nil
}
