package service

import (
	"context"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controllerFixture struct {
	controller *CheckoutController
	cart       *fakeCartService
	orders     *fakeOrderStore
	coupons    *fakeCouponStore
	locker     *fakeLocker
	events     *fakePublisher
	attempts   *fakeAttemptStore
}

func newControllerFixture(coupons ...*models.Coupon) *controllerFixture {
	pricing := testPricingEngine()
	couponStore := newFakeCouponStore(coupons...)
	validator := NewCouponValidator(couponStore)
	validator.now = func() time.Time { return couponNow }

	orders := newFakeOrderStore()
	locker := newFakeLocker()
	finalizer := NewOrderFinalizer(orders, couponStore, validator, locker)

	cart := newFakeCartService(&models.CartSnapshot{
		SessionID: "sess-1",
		Items: []models.CartItem{
			{ProductRef: "sku-1", Name: "Item", UnitPrice: 950, Quantity: 1},
		},
	})

	events := newFakePublisher()
	attempts := newFakeAttemptStore()
	instant := NewInstantStrategy(attempts, 0, 1.0)
	instant.randFloat = func() float64 { return 0.0 }

	controller := NewCheckoutController(
		pricing, validator, finalizer, cart, locker, events,
		NewCODStrategy(attempts),
		instant,
	)

	return &controllerFixture{
		controller: controller,
		cart:       cart,
		orders:     orders,
		coupons:    couponStore,
		locker:     locker,
		events:     events,
		attempts:   attempts,
	}
}

func testCheckoutRequest(method string) *CheckoutRequest {
	return &CheckoutRequest{
		SessionID: "sess-1",
		Address:   testAddress(),
		Method:    method,
	}
}

func TestBeginCheckoutCODHappyPath(t *testing.T) {
	fx := newControllerFixture()

	order, err := fx.controller.BeginCheckout(context.Background(), testCheckoutRequest(models.PaymentMethodCOD))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, int64(1020), order.Breakdown.Total) // 950 + 50 shipping + 20 surcharge
	assert.Equal(t, 1, fx.orders.count())
	assert.Equal(t, 1, fx.cart.clearedCount())
	require.Len(t, fx.events.confirmed, 1)
	assert.Equal(t, order.OrderNumber, fx.events.confirmed[0].OrderNumber)
}

func TestBeginCheckoutInstantHappyPath(t *testing.T) {
	fx := newControllerFixture()

	order, err := fx.controller.BeginCheckout(context.Background(), testCheckoutRequest(models.PaymentMethodInstant))

	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, int64(1000), order.Breakdown.Total) // no surcharge
}

func TestBeginCheckoutWithCoupon(t *testing.T) {
	coupon := validCoupon("SAVE20")
	fx := newControllerFixture(coupon)

	req := testCheckoutRequest(models.PaymentMethodInstant)
	req.CouponCode = "SAVE20"

	order, err := fx.controller.BeginCheckout(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, int64(190), order.Breakdown.CouponDiscount)
	assert.Equal(t, int64(810), order.Breakdown.Total) // 950 + 50 - 190

	stored, err := fx.coupons.LookupCoupon(context.Background(), "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUsageCount)
}

func TestBeginCheckoutFormValidation(t *testing.T) {
	fx := newControllerFixture()

	tests := []struct {
		name   string
		mutate func(*CheckoutRequest)
	}{
		{"missing address", func(r *CheckoutRequest) { r.Address = nil }},
		{"empty first name", func(r *CheckoutRequest) { r.Address.FirstName = "" }},
		{"bad email", func(r *CheckoutRequest) { r.Address.Email = "not-an-email" }},
		{"short phone", func(r *CheckoutRequest) { r.Address.Phone = "12345" }},
		{"alpha phone", func(r *CheckoutRequest) { r.Address.Phone = "98765abcde" }},
		{"short postal code", func(r *CheckoutRequest) { r.Address.PostalCode = "5600" }},
		{"empty city", func(r *CheckoutRequest) { r.Address.City = "" }},
		{"missing session", func(r *CheckoutRequest) { r.SessionID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testCheckoutRequest(models.PaymentMethodCOD)
			tt.mutate(req)

			_, err := fx.controller.BeginCheckout(context.Background(), req)
			require.Error(t, err)

			var cerr *CheckoutError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, CodeValidationError, cerr.Code)
		})
	}

	assert.Equal(t, 0, fx.orders.count())
	assert.Equal(t, 0, fx.cart.clearedCount())
}

func TestBeginCheckoutUnknownMethod(t *testing.T) {
	fx := newControllerFixture()

	_, err := fx.controller.BeginCheckout(context.Background(), testCheckoutRequest("cheque"))

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeValidationError, cerr.Code)
}

func TestBeginCheckoutRejectsConcurrentSession(t *testing.T) {
	fx := newControllerFixture()

	// Simulate an in-flight checkout holding the session lock.
	locked, err := fx.locker.AcquireLock(context.Background(), "checkout:sess-1", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = fx.controller.BeginCheckout(context.Background(), testCheckoutRequest(models.PaymentMethodCOD))

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeCheckoutInProgress, cerr.Code)
	assert.Equal(t, 0, fx.orders.count())
}

func TestBeginCheckoutReleasesSessionLock(t *testing.T) {
	fx := newControllerFixture()

	_, err := fx.controller.BeginCheckout(context.Background(), testCheckoutRequest(models.PaymentMethodCOD))
	require.NoError(t, err)

	// The lock must be free again for the next checkout of this session.
	locked, err := fx.locker.AcquireLock(context.Background(), "checkout:sess-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestBeginCheckoutCouponRejectedLeavesCartIntact(t *testing.T) {
	fx := newControllerFixture()

	req := testCheckoutRequest(models.PaymentMethodCOD)
	req.CouponCode = "NOSUCH"

	_, err := fx.controller.BeginCheckout(context.Background(), req)

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeCouponRejected, cerr.Code)
	assert.Equal(t, 0, fx.orders.count())
	assert.Equal(t, 0, fx.cart.clearedCount())
	require.Len(t, fx.events.failed, 1)
	assert.Equal(t, CodeCouponRejected, fx.events.failed[0].Code)
}

func TestBeginCheckoutPaymentDeclined(t *testing.T) {
	fx := newControllerFixture()

	declining := NewInstantStrategy(fx.attempts, 0, 0.0)
	declining.randFloat = func() float64 { return 0.99 }
	fx.controller.strategies[models.PaymentMethodInstant] = declining

	_, err := fx.controller.BeginCheckout(context.Background(), testCheckoutRequest(models.PaymentMethodInstant))

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodePaymentFailed, cerr.Code)
	assert.True(t, cerr.Retryable())
	assert.Equal(t, 0, fx.orders.count())
	assert.Equal(t, 0, fx.cart.clearedCount())
	require.Len(t, fx.events.failed, 1)
}

func TestBeginCheckoutCancellationNotPublishedAsFailure(t *testing.T) {
	fx := newControllerFixture()

	fx.controller.strategies[models.PaymentMethodInstant] = &cancellingStrategy{}

	_, err := fx.controller.BeginCheckout(context.Background(), testCheckoutRequest(models.PaymentMethodInstant))

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodePaymentCancelled, cerr.Code)
	assert.Empty(t, fx.events.failed)
	assert.Empty(t, fx.events.rejected)
}

func TestBeginCheckoutEmptyCart(t *testing.T) {
	fx := newControllerFixture()
	fx.cart.carts["sess-1"].Items = nil

	_, err := fx.controller.BeginCheckout(context.Background(), testCheckoutRequest(models.PaymentMethodCOD))

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeValidationError, cerr.Code)
}

type cancellingStrategy struct{}

func (s *cancellingStrategy) Method() string { return models.PaymentMethodInstant }

func (s *cancellingStrategy) Collect(context.Context, *PaymentRequest) (*PaymentResult, error) {
	return nil, &CheckoutError{Code: CodePaymentCancelled, Message: "Payment was cancelled"}
}
