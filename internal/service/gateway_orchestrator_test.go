package service

import (
	"context"
	"testing"

	"checkout-service/internal/gatewayclient"
	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeySecret = "test_merchant_secret"

func newTestOrchestrator(api GatewayAPI, surface CollectionSurface, attempts AttemptStore) *GatewayOrchestrator {
	return NewGatewayOrchestrator(api, gatewayclient.NewVerifier(testKeySecret), surface, attempts)
}

func signWith(secret string) func(gatewayOrderID, gatewayPaymentID string) string {
	v := gatewayclient.NewVerifier(secret)
	return v.Signature
}

func TestGatewayCollectVerifiedSuccess(t *testing.T) {
	api := newFakeGatewayAPI()
	attempts := newFakeAttemptStore()
	surface := &scriptedSurface{
		outcome:   CollectOutcomeSuccess,
		paymentID: "pay_123",
		sign:      signWith(testKeySecret),
	}
	g := newTestOrchestrator(api, surface, attempts)

	req := testPaymentRequest()
	result, err := g.Collect(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodGateway, result.Method)
	assert.Equal(t, "pay_123", result.PaymentRef)
	assert.Equal(t, "pay_123", result.GatewayPaymentID)
	assert.Equal(t, models.PaymentStatusPaid, result.PaymentStatus)
	assert.Equal(t, models.AttemptStatusSucceeded, attempts.status(req.AttemptToken))

	// The surface was handed the transaction in minor units with prefill.
	require.NotNil(t, surface.lastReq)
	assert.Equal(t, req.Breakdown.Total*100, surface.lastReq.AmountMinor)
	assert.Equal(t, "Asha Verma", surface.lastReq.Prefill["name"])
	assert.Equal(t, 1, api.fetched)
}

func TestGatewayCollectTamperedSignature(t *testing.T) {
	api := newFakeGatewayAPI()
	attempts := newFakeAttemptStore()
	surface := &scriptedSurface{
		outcome:   CollectOutcomeSuccess,
		paymentID: "pay_123",
		sign:      signWith("wrong_secret"),
	}
	g := newTestOrchestrator(api, surface, attempts)

	req := testPaymentRequest()
	_, err := g.Collect(context.Background(), req)

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodeSignatureVerification, cerr.Code)
	assert.Equal(t, "pay_123", cerr.PaymentRef)
	assert.False(t, cerr.Retryable())
	assert.Equal(t, models.AttemptStatusFailed, attempts.status(req.AttemptToken))
	// A rejected signature must never be confirmed with the gateway.
	assert.Equal(t, 0, api.fetched)
}

func TestGatewayCollectDismissed(t *testing.T) {
	api := newFakeGatewayAPI()
	attempts := newFakeAttemptStore()
	surface := &scriptedSurface{outcome: CollectOutcomeDismissed}
	g := newTestOrchestrator(api, surface, attempts)

	req := testPaymentRequest()
	_, err := g.Collect(context.Background(), req)

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodePaymentCancelled, cerr.Code)
	assert.True(t, cerr.Retryable())
	assert.Equal(t, models.AttemptStatusCancelled, attempts.status(req.AttemptToken))
}

func TestGatewayCollectSurfaceFailure(t *testing.T) {
	api := newFakeGatewayAPI()
	attempts := newFakeAttemptStore()
	surface := &scriptedSurface{outcome: CollectOutcomeFailure, signature: ""}
	g := newTestOrchestrator(api, surface, attempts)

	req := testPaymentRequest()
	_, err := g.Collect(context.Background(), req)

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodePaymentFailed, cerr.Code)
	assert.Equal(t, models.AttemptStatusFailed, attempts.status(req.AttemptToken))
}

func TestGatewayCollectCreateTransactionFails(t *testing.T) {
	api := newFakeGatewayAPI()
	api.createErr = assert.AnError
	attempts := newFakeAttemptStore()
	surface := &scriptedSurface{outcome: CollectOutcomeSuccess}
	g := newTestOrchestrator(api, surface, attempts)

	req := testPaymentRequest()
	_, err := g.Collect(context.Background(), req)

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodePaymentInitFailed, cerr.Code)
	assert.Equal(t, models.AttemptStatusFailed, attempts.status(req.AttemptToken))
	// The collection surface is never shown when creation fails.
	assert.Nil(t, surface.lastReq)
}

func TestGatewayCollectAmbiguousVerification(t *testing.T) {
	api := newFakeGatewayAPI()
	api.fetchErr = assert.AnError
	attempts := newFakeAttemptStore()
	surface := &scriptedSurface{
		outcome:   CollectOutcomeSuccess,
		paymentID: "pay_456",
		sign:      signWith(testKeySecret),
	}
	g := newTestOrchestrator(api, surface, attempts)

	req := testPaymentRequest()
	_, err := g.Collect(context.Background(), req)

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodePaymentVerification, cerr.Code)
	assert.Equal(t, "pay_456", cerr.PaymentRef)
	assert.Contains(t, cerr.Message, "pay_456")
	// Never retryable: money may already have moved.
	assert.False(t, cerr.Retryable())
	// The attempt is left awaiting reconciliation, not marked failed.
	assert.Equal(t, models.AttemptStatusAwaitingUser, attempts.status(req.AttemptToken))
}

func TestGatewayCollectUncapturedPayment(t *testing.T) {
	api := newFakeGatewayAPI()
	api.fetchState = "failed"
	attempts := newFakeAttemptStore()
	surface := &scriptedSurface{
		outcome:   CollectOutcomeSuccess,
		paymentID: "pay_789",
		sign:      signWith(testKeySecret),
	}
	g := newTestOrchestrator(api, surface, attempts)

	req := testPaymentRequest()
	_, err := g.Collect(context.Background(), req)

	var cerr *CheckoutError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CodePaymentFailed, cerr.Code)
	assert.Equal(t, models.AttemptStatusFailed, attempts.status(req.AttemptToken))
}
