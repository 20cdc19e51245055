package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// CouponStore is the coupon catalog collaborator. IncrementUsage must
// be atomic and must refuse to increment past the usage cap.
type CouponStore interface {
	LookupCoupon(ctx context.Context, code string) (*models.Coupon, error)
	IncrementUsage(ctx context.Context, code string) error
}

// CouponValidator checks coupon applicability against a subtotal and
// computes the clamped discount. It is invoked twice per checkout: at
// apply time and again inside the finalizer, so a coupon that expires
// or exhausts its cap mid-checkout fails the order closed.
type CouponValidator struct {
	coupons CouponStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewCouponValidator creates a coupon validator.
func NewCouponValidator(coupons CouponStore) *CouponValidator {
	return &CouponValidator{
		coupons: coupons,
		logger:  util.GetLogger(),
		now:     time.Now,
	}
}

// Validate looks up the code and returns the discount amount for the
// given subtotal, or a COUPON_REJECTED checkout error with a reason.
func (cv *CouponValidator) Validate(ctx context.Context, code string, subtotal int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "CouponValidator.Validate")
	defer span.End()

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, couponRejected(CouponReasonNotFound)
	}

	coupon, err := cv.coupons.LookupCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrCouponNotFound) {
			return 0, couponRejected(CouponReasonNotFound)
		}
		return 0, err
	}

	if reason := cv.applicability(coupon, subtotal); reason != "" {
		cv.logger.Info("Coupon rejected",
			zap.String("code", code),
			zap.String("reason", reason))
		util.CouponsRejectedTotal.WithLabelValues(reason).Inc()
		return 0, couponRejected(reason)
	}

	return Discount(coupon, subtotal), nil
}

// applicability returns the first failing rule's reason, or "".
func (cv *CouponValidator) applicability(coupon *models.Coupon, subtotal int64) string {
	now := cv.now()

	switch {
	case !coupon.IsActive:
		return CouponReasonInactive
	case now.Before(coupon.ValidFrom):
		return CouponReasonNotYetValid
	case now.After(coupon.ValidUntil):
		return CouponReasonExpired
	case coupon.MaxUsageCount > 0 && coupon.CurrentUsageCount >= coupon.MaxUsageCount:
		return CouponReasonUsageExhausted
	case subtotal < coupon.MinOrderAmount:
		return CouponReasonMinimumNotMet
	}
	return ""
}

// Discount computes the discount an applicable coupon grants on a
// subtotal, clamped to MaxDiscountAmount when set and never exceeding
// the subtotal itself.
func Discount(coupon *models.Coupon, subtotal int64) int64 {
	var discount int64
	switch coupon.DiscountType {
	case models.DiscountTypePercentage:
		discount = subtotal * coupon.DiscountValue / 100
	case models.DiscountTypeFixed:
		discount = coupon.DiscountValue
	}

	if coupon.MaxDiscountAmount > 0 && discount > coupon.MaxDiscountAmount {
		discount = coupon.MaxDiscountAmount
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount
}
