package service

import (
	"context"
	"math/rand"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// PaymentRequest is the order detail a strategy needs to collect
// payment. Strategies never mutate the snapshot.
type PaymentRequest struct {
	SessionID string
	// AttemptToken is generated once per checkout attempt and doubles
	// as the idempotency key for methods without a gateway payment id.
	AttemptToken string
	Breakdown    *models.PriceBreakdown
	Address      *models.ShippingAddress
}

// PaymentResult is a successful or accepted collection outcome.
type PaymentResult struct {
	Method string
	// PaymentRef is the finalizer's idempotency key: the gateway
	// payment id for gateway collections, the attempt token otherwise.
	PaymentRef       string
	PaymentStatus    string
	GatewayOrderID   string
	GatewayPaymentID string
}

// PaymentStrategy is the common collect contract the three payment
// methods implement. Failures are *CheckoutError values; no strategy
// retries on its own.
type PaymentStrategy interface {
	Method() string
	Collect(ctx context.Context, req *PaymentRequest) (*PaymentResult, error)
}

// AttemptStore persists the lifecycle of payment attempts.
type AttemptStore interface {
	CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	UpdateAttemptStatus(ctx context.Context, attemptToken, status string) error
	SetAttemptGatewayResult(ctx context.Context, attemptToken, gatewayOrderID, gatewayPaymentID, signature string) error
}

func validatePaymentRequest(req *PaymentRequest) error {
	switch {
	case req == nil:
		return validationErr("payment request is missing")
	case req.AttemptToken == "":
		return validationErr("attempt token is missing")
	case req.Breakdown == nil || req.Breakdown.Total < 0:
		return validationErr("price breakdown is missing or invalid")
	case req.Address == nil:
		return validationErr("shipping address is missing")
	}
	return nil
}

// CODStrategy accepts cash-on-delivery orders synchronously. Cash is
// collected at the door, so the resulting payment status stays pending.
type CODStrategy struct {
	attempts AttemptStore
	logger   *zap.Logger
}

// NewCODStrategy creates the cash-on-delivery strategy.
func NewCODStrategy(attempts AttemptStore) *CODStrategy {
	return &CODStrategy{attempts: attempts, logger: util.GetLogger()}
}

func (s *CODStrategy) Method() string { return models.PaymentMethodCOD }

// Collect accepts the order unless the request is structurally invalid.
func (s *CODStrategy) Collect(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "CODStrategy.Collect")
	defer span.End()

	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		AttemptToken: req.AttemptToken,
		SessionID:    req.SessionID,
		Method:       models.PaymentMethodCOD,
		Amount:       req.Breakdown.Total,
		Status:       models.AttemptStatusInitiated,
	}
	if err := s.attempts.CreatePaymentAttempt(ctx, attempt); err != nil {
		return nil, &CheckoutError{Code: CodePaymentInitFailed, Message: "Could not start payment", Err: err}
	}

	if err := s.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusSucceeded); err != nil {
		s.logger.Error("Failed to mark COD attempt succeeded", zap.Error(err))
	}

	util.PaymentsCollectedTotal.WithLabelValues(models.PaymentMethodCOD).Inc()
	s.logger.Info("COD payment accepted",
		zap.String("session_id", req.SessionID),
		zap.Int64("amount", req.Breakdown.Total))

	return &PaymentResult{
		Method:        models.PaymentMethodCOD,
		PaymentRef:    req.AttemptToken,
		PaymentStatus: models.PaymentStatusPending,
	}, nil
}

// InstantStrategy simulates a UPI-style instant transfer: a fixed
// delay, then a probabilistic decline for testing realism.
type InstantStrategy struct {
	attempts    AttemptStore
	logger      *zap.Logger
	delay       time.Duration
	successRate float64
	randFloat   func() float64
}

// NewInstantStrategy creates the simulated instant-transfer strategy.
func NewInstantStrategy(attempts AttemptStore, delay time.Duration, successRate float64) *InstantStrategy {
	return &InstantStrategy{
		attempts:    attempts,
		logger:      util.GetLogger(),
		delay:       delay,
		successRate: successRate,
		randFloat:   rand.Float64,
	}
}

func (s *InstantStrategy) Method() string { return models.PaymentMethodInstant }

// Collect resolves after the configured delay. Declines surface as
// PAYMENT_FAILED; the controller decides whether the user re-invokes.
func (s *InstantStrategy) Collect(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "InstantStrategy.Collect")
	defer span.End()

	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		AttemptToken: req.AttemptToken,
		SessionID:    req.SessionID,
		Method:       models.PaymentMethodInstant,
		Amount:       req.Breakdown.Total,
		Status:       models.AttemptStatusInitiated,
	}
	if err := s.attempts.CreatePaymentAttempt(ctx, attempt); err != nil {
		return nil, &CheckoutError{Code: CodePaymentInitFailed, Message: "Could not start payment", Err: err}
	}

	select {
	case <-ctx.Done():
		_ = s.attempts.UpdateAttemptStatus(context.Background(), req.AttemptToken, models.AttemptStatusCancelled)
		return nil, &CheckoutError{Code: CodePaymentCancelled, Message: "Payment was cancelled", Err: ctx.Err()}
	case <-time.After(s.delay):
	}

	if s.randFloat() >= s.successRate {
		_ = s.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusFailed)
		util.PaymentsFailedTotal.WithLabelValues(models.PaymentMethodInstant).Inc()
		s.logger.Warn("Instant payment declined", zap.String("session_id", req.SessionID))
		return nil, &CheckoutError{Code: CodePaymentFailed, Message: "Payment was declined, please try again"}
	}

	if err := s.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusSucceeded); err != nil {
		s.logger.Error("Failed to mark instant attempt succeeded", zap.Error(err))
	}

	util.PaymentsCollectedTotal.WithLabelValues(models.PaymentMethodInstant).Inc()
	s.logger.Info("Instant payment collected",
		zap.String("session_id", req.SessionID),
		zap.Int64("amount", req.Breakdown.Total))

	return &PaymentResult{
		Method:        models.PaymentMethodInstant,
		PaymentRef:    req.AttemptToken,
		PaymentStatus: models.PaymentStatusPaid,
	}, nil
}
