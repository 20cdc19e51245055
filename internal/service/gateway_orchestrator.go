package service

import (
	"context"

	"checkout-service/internal/gatewayclient"
	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// GatewayAPI is the server-side surface of the hosted payment gateway.
type GatewayAPI interface {
	CreateTransaction(ctx context.Context, amountMinor int64, receipt string, notes map[string]string) (*gatewayclient.Transaction, error)
	FetchPayment(ctx context.Context, gatewayPaymentID string) (*gatewayclient.Payment, error)
}

// SignatureVerifier checks gateway callback signatures.
type SignatureVerifier interface {
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

// Collection outcomes reported by the gateway's client-side surface.
const (
	CollectOutcomeSuccess   = "success"
	CollectOutcomeFailure   = "failure"
	CollectOutcomeDismissed = "dismissed"
)

// CollectRequest is the hand-off to the gateway's client-side
// collection surface.
type CollectRequest struct {
	GatewayOrderID string            `json:"gateway_order_id"`
	AmountMinor    int64             `json:"amount"`
	ClientKey      string            `json:"client_key"`
	Prefill        map[string]string `json:"prefill"`
}

// CollectResponse is the single settled result of the collection
// surface: the gateway's three callbacks (success, failure, dismiss)
// collapsed into one terminal outcome.
type CollectResponse struct {
	Outcome          string `json:"outcome"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	Signature        string `json:"signature,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
}

// CollectionSurface suspends until the user completes, cancels, or the
// surface reports a hard failure. Exactly one response per request.
type CollectionSurface interface {
	Collect(ctx context.Context, req *CollectRequest) (*CollectResponse, error)
}

// GatewayOrchestrator drives the strictly ordered gateway protocol:
// create a pending transaction server-side, hand off to the collection
// surface, verify the callback signature, then confirm capture with
// the gateway. Only a verified, confirmed success reaches the finalizer.
type GatewayOrchestrator struct {
	api      GatewayAPI
	verifier SignatureVerifier
	surface  CollectionSurface
	attempts AttemptStore
	logger   *zap.Logger
}

// NewGatewayOrchestrator creates a gateway orchestrator.
func NewGatewayOrchestrator(api GatewayAPI, verifier SignatureVerifier, surface CollectionSurface, attempts AttemptStore) *GatewayOrchestrator {
	return &GatewayOrchestrator{
		api:      api,
		verifier: verifier,
		surface:  surface,
		attempts: attempts,
		logger:   util.GetLogger(),
	}
}

// Collect runs the full gateway protocol for one payment attempt.
func (g *GatewayOrchestrator) Collect(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "GatewayOrchestrator.Collect")
	defer span.End()

	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		AttemptToken: req.AttemptToken,
		SessionID:    req.SessionID,
		Method:       models.PaymentMethodGateway,
		Amount:       req.Breakdown.Total,
		Status:       models.AttemptStatusInitiated,
	}
	if err := g.attempts.CreatePaymentAttempt(ctx, attempt); err != nil {
		return nil, &CheckoutError{Code: CodePaymentInitFailed, Message: "Could not start payment", Err: err}
	}

	// Step 1: server-side transaction creation. On failure no
	// collection surface is ever shown.
	tx, err := g.createTransaction(ctx, req)
	if err != nil {
		_ = g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusFailed)
		return nil, err
	}

	if err := g.attempts.SetAttemptGatewayResult(ctx, req.AttemptToken, tx.GatewayOrderID, "", ""); err != nil {
		g.logger.Error("Failed to record gateway order id", zap.Error(err))
	}
	_ = g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusAwaitingUser)

	// Step 2: single suspension point until the surface settles.
	resp, err := g.surface.Collect(ctx, &CollectRequest{
		GatewayOrderID: tx.GatewayOrderID,
		AmountMinor:    tx.Amount,
		ClientKey:      tx.ClientKey,
		Prefill: map[string]string{
			"name":  req.Address.FirstName + " " + req.Address.LastName,
			"email": req.Address.Email,
			"phone": req.Address.Phone,
		},
	})
	if err != nil {
		_ = g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusFailed)
		util.PaymentsFailedTotal.WithLabelValues(models.PaymentMethodGateway).Inc()
		return nil, &CheckoutError{Code: CodePaymentFailed, Message: "Payment could not be completed", Err: err}
	}

	switch resp.Outcome {
	case CollectOutcomeDismissed:
		// User closed the surface. Not a system failure.
		_ = g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusCancelled)
		util.PaymentsCancelledTotal.Inc()
		g.logger.Info("Payment dismissed by user",
			zap.String("session_id", req.SessionID),
			zap.String("gateway_order_id", tx.GatewayOrderID))
		return nil, &CheckoutError{Code: CodePaymentCancelled, Message: "Payment was cancelled"}

	case CollectOutcomeFailure:
		_ = g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusFailed)
		util.PaymentsFailedTotal.WithLabelValues(models.PaymentMethodGateway).Inc()
		g.logger.Warn("Gateway reported payment failure",
			zap.String("gateway_order_id", tx.GatewayOrderID),
			zap.String("reason", resp.FailureReason))
		return nil, &CheckoutError{Code: CodePaymentFailed, Message: "Payment was declined: " + resp.FailureReason}

	case CollectOutcomeSuccess:
		return g.verify(ctx, req, tx, resp)
	}

	_ = g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusFailed)
	return nil, &CheckoutError{Code: CodePaymentFailed, Message: "Payment ended in an unknown state"}
}

func (g *GatewayOrchestrator) createTransaction(ctx context.Context, req *PaymentRequest) (*gatewayclient.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "GatewayOrchestrator.createTransaction")
	defer span.End()

	// The gateway settles in minor currency units.
	tx, err := g.api.CreateTransaction(ctx, req.Breakdown.Total*100, req.AttemptToken, map[string]string{
		"session_id": req.SessionID,
	})
	if err != nil {
		util.GatewayInitFailuresTotal.Inc()
		g.logger.Error("Gateway transaction creation failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		return nil, &CheckoutError{Code: CodePaymentInitFailed, Message: "Could not reach the payment gateway", Err: err}
	}

	g.logger.Info("Gateway transaction created",
		zap.String("gateway_order_id", tx.GatewayOrderID),
		zap.Int64("amount_minor", tx.Amount))
	return tx, nil
}

// verify checks the callback signature and confirms capture with the
// gateway. A signature mismatch is a security event, not a payment
// failure; an unreachable confirm call is ambiguous and must surface
// to support rather than retry.
func (g *GatewayOrchestrator) verify(ctx context.Context, req *PaymentRequest, tx *gatewayclient.Transaction, resp *CollectResponse) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "GatewayOrchestrator.verify")
	defer span.End()

	if !g.verifier.VerifySignature(tx.GatewayOrderID, resp.GatewayPaymentID, resp.Signature) {
		_ = g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusFailed)
		util.SignatureFailuresTotal.Inc()
		g.logger.Error("Gateway signature verification failed",
			zap.String("gateway_order_id", tx.GatewayOrderID),
			zap.String("gateway_payment_id", resp.GatewayPaymentID))
		return nil, &CheckoutError{
			Code:       CodeSignatureVerification,
			Message:    "Payment could not be verified, no order was placed",
			PaymentRef: resp.GatewayPaymentID,
		}
	}

	payment, err := g.api.FetchPayment(ctx, resp.GatewayPaymentID)
	if err != nil {
		// Money may have moved at the gateway but we cannot confirm it.
		// Never resolve this to an order and never retry the attempt.
		util.AmbiguousVerificationsTotal.Inc()
		g.logger.Error("Payment verification unreachable",
			zap.String("gateway_payment_id", resp.GatewayPaymentID),
			zap.Error(err))
		return nil, &CheckoutError{
			Code:       CodePaymentVerification,
			Message:    "We could not confirm your payment. Please contact support with reference " + resp.GatewayPaymentID,
			PaymentRef: resp.GatewayPaymentID,
			Err:        err,
		}
	}

	if payment.Status != "captured" && payment.Status != "authorized" {
		_ = g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusFailed)
		util.PaymentsFailedTotal.WithLabelValues(models.PaymentMethodGateway).Inc()
		return nil, &CheckoutError{Code: CodePaymentFailed, Message: "Payment was not captured by the gateway"}
	}

	if err := g.attempts.SetAttemptGatewayResult(ctx, req.AttemptToken, tx.GatewayOrderID, resp.GatewayPaymentID, resp.Signature); err != nil {
		g.logger.Error("Failed to record gateway payment result", zap.Error(err))
	}
	if err := g.attempts.UpdateAttemptStatus(ctx, req.AttemptToken, models.AttemptStatusSucceeded); err != nil {
		g.logger.Error("Failed to mark gateway attempt succeeded", zap.Error(err))
	}

	util.PaymentsCollectedTotal.WithLabelValues(models.PaymentMethodGateway).Inc()
	g.logger.Info("Gateway payment verified",
		zap.String("gateway_order_id", tx.GatewayOrderID),
		zap.String("gateway_payment_id", resp.GatewayPaymentID))

	return &PaymentResult{
		Method:           models.PaymentMethodGateway,
		PaymentRef:       resp.GatewayPaymentID,
		PaymentStatus:    models.PaymentStatusPaid,
		GatewayOrderID:   tx.GatewayOrderID,
		GatewayPaymentID: resp.GatewayPaymentID,
	}, nil
}

// GatewayStrategy adapts the orchestrator to the payment strategy
// contract.
type GatewayStrategy struct {
	orchestrator *GatewayOrchestrator
}

// NewGatewayStrategy creates the gateway payment strategy.
func NewGatewayStrategy(orchestrator *GatewayOrchestrator) *GatewayStrategy {
	return &GatewayStrategy{orchestrator: orchestrator}
}

func (s *GatewayStrategy) Method() string { return models.PaymentMethodGateway }

func (s *GatewayStrategy) Collect(ctx context.Context, req *PaymentRequest) (*PaymentResult, error) {
	return s.orchestrator.Collect(ctx, req)
}
