package service

import (
	"context"
	"strings"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore persists orders. CreateOrder must be an upsert keyed by
// payment_ref enforced by a storage-level uniqueness constraint: it
// reports created=false when an order for the ref already exists.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) (created bool, err error)
	GetOrderByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
}

// Locker serializes finalizations sharing one idempotency key.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// FinalizeInput carries everything the finalizer needs to record the
// order for one accepted payment attempt.
type FinalizeInput struct {
	Cart       *models.CartSnapshot
	Address    *models.ShippingAddress
	CouponCode string
	Breakdown  *models.PriceBreakdown
	Payment    *PaymentResult
}

// OrderFinalizer turns an accepted payment into exactly one durable
// order. Idempotent per payment ref: a repeated finalization returns
// the order recorded by the first one.
type OrderFinalizer struct {
	orders  OrderStore
	coupons CouponStore
	coupon  *CouponValidator
	locker  Locker
	logger  *zap.Logger
	lockTTL time.Duration
}

// NewOrderFinalizer creates an order finalizer.
func NewOrderFinalizer(orders OrderStore, coupons CouponStore, validator *CouponValidator, locker Locker) *OrderFinalizer {
	return &OrderFinalizer{
		orders:  orders,
		coupons: coupons,
		coupon:  validator,
		locker:  locker,
		logger:  util.GetLogger(),
		lockTTL: 30 * time.Second,
	}
}

// Finalize records the order for a succeeded or accepted payment.
func (f *OrderFinalizer) Finalize(ctx context.Context, in *FinalizeInput) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderFinalizer.Finalize")
	defer span.End()

	if in == nil || in.Payment == nil || in.Payment.PaymentRef == "" {
		return nil, validationErr("finalization requires an accepted payment")
	}
	ref := in.Payment.PaymentRef

	// Fast path: a retried finalization for a ref we already recorded.
	if existing, err := f.orders.GetOrderByPaymentRef(ctx, ref); err == nil && existing != nil {
		util.FinalizerDuplicatesTotal.Inc()
		f.logger.Info("Duplicate finalization detected",
			zap.String("payment_ref", ref),
			zap.String("order_number", existing.OrderNumber))
		return existing, nil
	}

	// Serialize concurrent finalizations for the same ref. The storage
	// uniqueness constraint is the real guarantee; the lock just keeps
	// racing callers from both paying the insert.
	locked, err := f.locker.AcquireLock(ctx, "finalize:"+ref, f.lockTTL)
	if err != nil {
		f.logger.Warn("Finalizer lock unavailable, relying on storage constraint", zap.Error(err))
	}
	if locked {
		defer func() {
			if err := f.locker.ReleaseLock(context.Background(), "finalize:"+ref); err != nil {
				f.logger.Warn("Failed to release finalizer lock", zap.Error(err))
			}
		}()
	}

	if err := f.revalidateCoupon(ctx, in); err != nil {
		return nil, err
	}

	order := f.buildOrder(in)
	created, err := f.orders.CreateOrder(ctx, order)
	if err != nil {
		return nil, f.persistenceFailure(in, err)
	}
	if !created {
		existing, err := f.orders.GetOrderByPaymentRef(ctx, ref)
		if err != nil || existing == nil {
			return nil, f.persistenceFailure(in, err)
		}
		util.FinalizerDuplicatesTotal.Inc()
		return existing, nil
	}

	if in.CouponCode != "" {
		if err := f.coupons.IncrementUsage(ctx, strings.ToUpper(strings.TrimSpace(in.CouponCode))); err != nil {
			// The order is already durable; the counter drift is an
			// operator follow-up, not a buyer-facing failure.
			f.logger.Error("Failed to increment coupon usage after order creation",
				zap.String("coupon", in.CouponCode),
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
		}
	}

	util.OrdersPlacedTotal.WithLabelValues(order.PaymentMethod).Inc()
	f.logger.Info("Order recorded",
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_ref", ref),
		zap.Int64("total", order.Breakdown.Total))
	return order, nil
}

// revalidateCoupon closes the window between apply time and order
// placement: an applied coupon that expired or exhausted its cap in
// between fails the order closed rather than silently dropping the
// discount or honouring it past expiry.
func (f *OrderFinalizer) revalidateCoupon(ctx context.Context, in *FinalizeInput) error {
	if in.CouponCode == "" {
		return nil
	}

	discount, err := f.coupon.Validate(ctx, in.CouponCode, in.Breakdown.Subtotal)
	if err != nil {
		f.logger.Warn("Coupon failed re-validation at finalization",
			zap.String("coupon", in.CouponCode),
			zap.Error(err))
		return err
	}
	if discount != in.Breakdown.CouponDiscount {
		return couponRejected(CouponReasonExpired)
	}
	return nil
}

func (f *OrderFinalizer) buildOrder(in *FinalizeInput) *models.Order {
	// Frozen copy of the snapshot lines.
	items := make([]models.CartItem, len(in.Cart.Items))
	copy(items, in.Cart.Items)

	return &models.Order{
		OrderNumber:     "ORD-" + strings.ToUpper(uuid.New().String()[:8]),
		SessionID:       in.Cart.SessionID,
		PaymentRef:      in.Payment.PaymentRef,
		PaymentMethod:   in.Payment.Method,
		PaymentStatus:   in.Payment.PaymentStatus,
		OrderStatus:     models.OrderStatusPending,
		CouponCode:      strings.ToUpper(strings.TrimSpace(in.CouponCode)),
		Breakdown:       *in.Breakdown,
		ShippingAddress: *in.Address,
		Items:           items,
	}
}

// persistenceFailure maps a failed insert to the right outcome. When a
// gateway payment already succeeded the buyer must not be told the
// purchase failed: the result degrades to pending reconciliation with
// the payment reference attached.
func (f *OrderFinalizer) persistenceFailure(in *FinalizeInput, err error) error {
	if in.Payment.Method == models.PaymentMethodGateway && in.Payment.PaymentStatus == models.PaymentStatusPaid {
		f.logger.Error("Order persistence failed after captured payment",
			zap.String("payment_ref", in.Payment.PaymentRef),
			zap.Error(err))
		return &CheckoutError{
			Code:       CodeOrderPersistenceFailed,
			Message:    "Your payment was received but the order is pending. Please contact support with reference " + in.Payment.PaymentRef,
			PaymentRef: in.Payment.PaymentRef,
			Err:        err,
		}
	}

	return &CheckoutError{
		Code:    CodeOrderPersistenceFailed,
		Message: "Could not record your order, please try again",
		Err:     err,
	}
}
