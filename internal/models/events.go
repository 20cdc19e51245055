package models

import "time"

// Event types
const (
	EventTypeCheckoutConfirmed = "CHECKOUT_CONFIRMED"
	EventTypePaymentCaptured   = "PAYMENT_CAPTURED"
	EventTypeCheckoutFailed    = "CHECKOUT_FAILED"
	EventTypeSignatureRejected = "SIGNATURE_REJECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutConfirmedEvent published when an order is durably recorded
// and the checkout reaches its confirmed state.
type CheckoutConfirmedEvent struct {
	BaseEvent
	SessionID   string `json:"session_id"`
	OrderNumber string `json:"order_number"`
	PaymentRef  string `json:"payment_ref"`
	Method      string `json:"method"`
	Total       int64  `json:"total"`
}

// PaymentCapturedEvent published when a gateway payment verifies.
type PaymentCapturedEvent struct {
	BaseEvent
	SessionID        string `json:"session_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Amount           int64  `json:"amount"`
}

// CheckoutFailedEvent published when a checkout exits with a failure.
type CheckoutFailedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Method    string `json:"method"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// SignatureRejectedEvent published when a gateway callback fails
// signature verification. Security relevant, always audited.
type SignatureRejectedEvent struct {
	BaseEvent
	SessionID        string `json:"session_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
}
