package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Checkout states
const (
	StateFormEntry      = "form_entry"
	StateMethodSelected = "method_selected"
	StateCollecting     = "collecting"
	StateVerifying      = "verifying"
	StateFinalizing     = "finalizing"
	StateConfirmed      = "confirmed"
	StateCancelled      = "cancelled"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^[0-9]{10}$`)
	postalPattern = regexp.MustCompile(`^[0-9]{6}$`)
)

// CartService is the cart collaborator. ClearCart is only invoked
// after an order is durably recorded.
type CartService interface {
	GetCart(ctx context.Context, sessionID string) (*models.CartSnapshot, error)
	ClearCart(ctx context.Context, sessionID string) error
}

// CheckoutEventPublisher publishes checkout lifecycle events.
type CheckoutEventPublisher interface {
	PublishCheckoutConfirmed(ctx context.Context, event *models.CheckoutConfirmedEvent) error
	PublishCheckoutFailed(ctx context.Context, event *models.CheckoutFailedEvent) error
	PublishPaymentCaptured(ctx context.Context, event *models.PaymentCapturedEvent) error
	PublishSignatureRejected(ctx context.Context, event *models.SignatureRejectedEvent) error
}

// CheckoutRequest is one checkout invocation for a cart session.
type CheckoutRequest struct {
	SessionID  string                  `json:"session_id" binding:"required"`
	Address    *models.ShippingAddress `json:"address" binding:"required"`
	CouponCode string                  `json:"coupon_code,omitempty"`
	Method     string                  `json:"method" binding:"required"`
}

// CheckoutController drives the user-facing checkout sequence: form
// validation, method selection, payment collection, finalization, and
// the retry/cancel/error surface. Every failure leaving BeginCheckout
// is a *CheckoutError; nothing past this boundary crashes a session.
type CheckoutController struct {
	pricing    *PricingEngine
	coupon     *CouponValidator
	strategies map[string]PaymentStrategy
	finalizer  *OrderFinalizer
	cart       CartService
	locker     Locker
	events     CheckoutEventPublisher
	logger     *zap.Logger
	sessionTTL time.Duration
}

// NewCheckoutController creates the checkout controller with the given
// strategies registered by method tag.
func NewCheckoutController(
	pricing *PricingEngine,
	coupon *CouponValidator,
	finalizer *OrderFinalizer,
	cart CartService,
	locker Locker,
	events CheckoutEventPublisher,
	strategies ...PaymentStrategy,
) *CheckoutController {
	byMethod := make(map[string]PaymentStrategy, len(strategies))
	for _, s := range strategies {
		byMethod[s.Method()] = s
	}
	return &CheckoutController{
		pricing:    pricing,
		coupon:     coupon,
		strategies: byMethod,
		finalizer:  finalizer,
		cart:       cart,
		locker:     locker,
		events:     events,
		logger:     util.GetLogger(),
		sessionTTL: 10 * time.Minute,
	}
}

// BeginCheckout runs one checkout attempt end to end and returns the
// recorded order or a coded failure. A second invocation for the same
// cart session while one is in flight is rejected, not queued.
func (cc *CheckoutController) BeginCheckout(ctx context.Context, req *CheckoutRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutController.BeginCheckout")
	defer span.End()

	util.CheckoutsStartedTotal.Inc()
	state := StateFormEntry

	if err := cc.validateForm(req); err != nil {
		return nil, cc.fail(ctx, req, state, err)
	}

	locked, err := cc.locker.AcquireLock(ctx, "checkout:"+req.SessionID, cc.sessionTTL)
	if err != nil {
		return nil, cc.fail(ctx, req, state, &CheckoutError{
			Code: CodePaymentInitFailed, Message: "Checkout is temporarily unavailable", Err: err,
		})
	}
	if !locked {
		return nil, cc.fail(ctx, req, state, &CheckoutError{
			Code: CodeCheckoutInProgress, Message: "A checkout for this cart is already in progress",
		})
	}
	defer func() {
		if err := cc.locker.ReleaseLock(context.Background(), "checkout:"+req.SessionID); err != nil {
			cc.logger.Warn("Failed to release checkout lock", zap.Error(err))
		}
	}()

	strategy, ok := cc.strategies[req.Method]
	if !ok {
		return nil, cc.fail(ctx, req, state, validationErr("unknown payment method: "+req.Method))
	}
	state = cc.transition(req.SessionID, state, StateMethodSelected)

	// Snapshot the cart once; later cart mutations cannot touch this
	// checkout.
	cart, err := cc.cart.GetCart(ctx, req.SessionID)
	if err != nil {
		return nil, cc.fail(ctx, req, state, &CheckoutError{
			Code: CodeValidationError, Message: "Could not load your cart", Err: err,
		})
	}

	subtotal, err := cc.pricing.Subtotal(cart)
	if err != nil {
		return nil, cc.fail(ctx, req, state, err)
	}

	var discount int64
	if req.CouponCode != "" {
		discount, err = cc.coupon.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, cc.fail(ctx, req, state, err)
		}
	}

	breakdown, err := cc.pricing.Price(cart, discount, req.Method)
	if err != nil {
		return nil, cc.fail(ctx, req, state, err)
	}

	state = cc.transition(req.SessionID, state, StateCollecting)
	result, err := strategy.Collect(ctx, &PaymentRequest{
		SessionID:    req.SessionID,
		AttemptToken: uuid.New().String(),
		Breakdown:    breakdown,
		Address:      req.Address,
	})
	if err != nil {
		return nil, cc.fail(ctx, req, state, err)
	}

	// Verification has already succeeded inside the gateway branch by
	// the time Collect returns; the state is tracked for the surface.
	state = cc.transition(req.SessionID, state, StateVerifying)

	if result.Method == models.PaymentMethodGateway {
		if err := cc.events.PublishPaymentCaptured(ctx, &models.PaymentCapturedEvent{
			BaseEvent:        newBaseEvent(models.EventTypePaymentCaptured),
			SessionID:        req.SessionID,
			GatewayOrderID:   result.GatewayOrderID,
			GatewayPaymentID: result.GatewayPaymentID,
			Amount:           breakdown.Total,
		}); err != nil {
			cc.logger.Error("Failed to publish PaymentCaptured event", zap.Error(err))
		}
	}

	state = cc.transition(req.SessionID, state, StateFinalizing)

	order, err := cc.finalizer.Finalize(ctx, &FinalizeInput{
		Cart:       cart,
		Address:    req.Address,
		CouponCode: req.CouponCode,
		Breakdown:  breakdown,
		Payment:    result,
	})
	if err != nil {
		return nil, cc.fail(ctx, req, state, err)
	}

	// Order first, then cart clearing and confirmation, strictly in
	// that order.
	if err := cc.cart.ClearCart(ctx, req.SessionID); err != nil {
		cc.logger.Error("Failed to clear cart after confirmed order",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
	}

	cc.transition(req.SessionID, state, StateConfirmed)
	util.CheckoutsConfirmedTotal.Inc()

	if err := cc.events.PublishCheckoutConfirmed(ctx, &models.CheckoutConfirmedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeCheckoutConfirmed),
		SessionID:   req.SessionID,
		OrderNumber: order.OrderNumber,
		PaymentRef:  order.PaymentRef,
		Method:      order.PaymentMethod,
		Total:       order.Breakdown.Total,
	}); err != nil {
		cc.logger.Error("Failed to publish CheckoutConfirmed event", zap.Error(err))
	}

	return order, nil
}

// validateForm is the FormEntry gate: all shipping fields present and
// well formed before a method is selectable. No network calls here.
func (cc *CheckoutController) validateForm(req *CheckoutRequest) error {
	if req == nil || req.Address == nil {
		return validationErr("shipping address is required")
	}
	a := req.Address
	switch {
	case a.FirstName == "" || a.LastName == "":
		return validationErr("name fields must not be empty")
	case !emailPattern.MatchString(a.Email):
		return validationErr("email address is not valid")
	case !phonePattern.MatchString(a.Phone):
		return validationErr("phone number must be 10 digits")
	case !postalPattern.MatchString(a.PostalCode):
		return validationErr("postal code must be 6 digits")
	case a.Line1 == "" || a.City == "":
		return validationErr("address line and city must not be empty")
	case req.SessionID == "":
		return validationErr("cart session is missing")
	}
	return nil
}

// fail recovers any pipeline error at the controller boundary, renders
// it as a coded CheckoutError, and records the exit.
func (cc *CheckoutController) fail(ctx context.Context, req *CheckoutRequest, state string, err error) error {
	var cerr *CheckoutError
	if !errors.As(err, &cerr) {
		cerr = &CheckoutError{Code: CodePaymentFailed, Message: "Checkout could not be completed", Err: err}
	}

	terminal := StateMethodSelected
	if cerr.Code == CodePaymentCancelled && state == StateCollecting {
		terminal = StateCancelled
	}
	cc.transition(req.SessionID, state, terminal)

	util.CheckoutsFailedTotal.WithLabelValues(cerr.Code).Inc()
	cc.logger.Warn("Checkout exited with failure",
		zap.String("session_id", req.SessionID),
		zap.String("state", state),
		zap.String("code", cerr.Code))

	if cerr.Code == CodeSignatureVerification {
		if pubErr := cc.events.PublishSignatureRejected(ctx, &models.SignatureRejectedEvent{
			BaseEvent:        newBaseEvent(models.EventTypeSignatureRejected),
			SessionID:        req.SessionID,
			GatewayPaymentID: cerr.PaymentRef,
		}); pubErr != nil {
			cc.logger.Error("Failed to publish SignatureRejected event", zap.Error(pubErr))
		}
	} else if cerr.Code != CodePaymentCancelled {
		// A user dismissal is not an error and is not published.
		if pubErr := cc.events.PublishCheckoutFailed(ctx, &models.CheckoutFailedEvent{
			BaseEvent: newBaseEvent(models.EventTypeCheckoutFailed),
			SessionID: req.SessionID,
			Method:    req.Method,
			Code:      cerr.Code,
			Reason:    cerr.Message,
		}); pubErr != nil {
			cc.logger.Error("Failed to publish CheckoutFailed event", zap.Error(pubErr))
		}
	}

	return cerr
}

func (cc *CheckoutController) transition(sessionID, from, to string) string {
	cc.logger.Debug("Checkout state transition",
		zap.String("session_id", sessionID),
		zap.String("from", from),
		zap.String("to", to))
	return to
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
