package worker

import (
	"context"
	"log"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
)

// AuditStore records consumed checkout events idempotently.
type AuditStore interface {
	RecordPaymentAudit(ctx context.Context, audit *models.PaymentAudit) error
}

// AuditWorker consumes checkout events and records an audit row per
// event. Rows are keyed by event id, so kafka redelivery is harmless.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        AuditStore
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store AuditStore) *AuditWorker {
	w := &AuditWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
	}

	w.eventHandler.OnCheckoutConfirmed(w.handleCheckoutConfirmed)
	w.eventHandler.OnCheckoutFailed(w.handleCheckoutFailed)
	w.eventHandler.OnPaymentCaptured(w.handlePaymentCaptured)
	w.eventHandler.OnSignatureRejected(w.handleSignatureRejected)

	return w
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	log.Println("Starting audit worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	log.Println("Stopping audit worker...")
	return w.consumer.Close()
}

func (w *AuditWorker) handleCheckoutConfirmed(ctx context.Context, event *models.CheckoutConfirmedEvent) error {
	return w.store.RecordPaymentAudit(ctx, &models.PaymentAudit{
		EventID:    event.EventID,
		EventType:  event.EventType,
		SessionID:  event.SessionID,
		PaymentRef: event.PaymentRef,
		Amount:     event.Total,
		Detail:     "order " + event.OrderNumber + " via " + event.Method,
	})
}

func (w *AuditWorker) handleCheckoutFailed(ctx context.Context, event *models.CheckoutFailedEvent) error {
	return w.store.RecordPaymentAudit(ctx, &models.PaymentAudit{
		EventID:   event.EventID,
		EventType: event.EventType,
		SessionID: event.SessionID,
		Detail:    event.Code + ": " + event.Reason,
	})
}

func (w *AuditWorker) handlePaymentCaptured(ctx context.Context, event *models.PaymentCapturedEvent) error {
	return w.store.RecordPaymentAudit(ctx, &models.PaymentAudit{
		EventID:    event.EventID,
		EventType:  event.EventType,
		SessionID:  event.SessionID,
		PaymentRef: event.GatewayPaymentID,
		Amount:     event.Amount,
		Detail:     "captured against " + event.GatewayOrderID,
	})
}

func (w *AuditWorker) handleSignatureRejected(ctx context.Context, event *models.SignatureRejectedEvent) error {
	return w.store.RecordPaymentAudit(ctx, &models.PaymentAudit{
		EventID:    event.EventID,
		EventType:  event.EventType,
		SessionID:  event.SessionID,
		PaymentRef: event.GatewayPaymentID,
		Detail:     "signature mismatch for " + event.GatewayOrderID,
	})
}
