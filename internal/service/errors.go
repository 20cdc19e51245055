package service

import "fmt"

// Checkout failure codes. Every error surfaced past the checkout
// controller carries exactly one of these.
const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeCouponRejected         = "COUPON_REJECTED"
	CodePaymentInitFailed      = "PAYMENT_INIT_FAILED"
	CodePaymentCancelled       = "PAYMENT_CANCELLED"
	CodePaymentFailed          = "PAYMENT_FAILED"
	CodeSignatureVerification  = "SIGNATURE_VERIFICATION_FAILED"
	CodePaymentVerification    = "PAYMENT_VERIFICATION_FAILED"
	CodeOrderPersistenceFailed = "ORDER_PERSISTENCE_FAILED"
	CodeCheckoutInProgress     = "CHECKOUT_IN_PROGRESS"
)

// Coupon rejection reasons
const (
	CouponReasonExpired        = "expired"
	CouponReasonNotYetValid    = "not_yet_valid"
	CouponReasonUsageExhausted = "usage_exhausted"
	CouponReasonMinimumNotMet  = "minimum_not_met"
	CouponReasonInactive       = "inactive"
	CouponReasonNotFound       = "not_found"
)

// CheckoutError is the boundary error for the whole pipeline: a stable
// machine code, a user-facing message, and the wrapped cause.
type CheckoutError struct {
	Code    string
	Message string
	// Reason carries the coupon rejection reason for COUPON_REJECTED.
	Reason string
	// PaymentRef carries the gateway payment id for ambiguous or
	// degraded outcomes so the user can quote it to support.
	PaymentRef string
	Err        error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the user may safely re-invoke collection
// for this failure. Ambiguous verification is deliberately excluded: a
// second transaction there risks a double charge.
func (e *CheckoutError) Retryable() bool {
	switch e.Code {
	case CodePaymentInitFailed, CodePaymentFailed, CodePaymentCancelled, CodeCouponRejected, CodeValidationError:
		return true
	}
	return false
}

func validationErr(msg string) *CheckoutError {
	return &CheckoutError{Code: CodeValidationError, Message: msg}
}

func couponRejected(reason string) *CheckoutError {
	return &CheckoutError{
		Code:    CodeCouponRejected,
		Message: "Coupon cannot be applied: " + reason,
		Reason:  reason,
	}
}
