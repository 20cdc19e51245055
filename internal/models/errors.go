package models

import "errors"

var (
	// ErrCouponNotFound is returned by coupon lookups for unknown codes.
	ErrCouponNotFound = errors.New("coupon not found")

	// ErrCouponExhausted is returned when a guarded usage increment
	// would exceed the coupon's usage cap.
	ErrCouponExhausted = errors.New("coupon usage exhausted")

	// ErrOrderNotFound is returned by order lookups for unknown refs.
	ErrOrderNotFound = errors.New("order not found")
)
