package models

import "time"

// CartItem is a single line captured at checkout start.
type CartItem struct {
	ProductRef string `db:"product_ref" json:"product_ref"`
	Name       string `db:"name" json:"name"`
	UnitPrice  int64  `db:"unit_price" json:"unit_price"`
	Quantity   int    `db:"quantity" json:"quantity"`
	ImageRef   string `db:"image_ref" json:"image_ref,omitempty"`
}

// CartSnapshot is the immutable copy of the cart taken when a checkout
// begins. Later cart mutations must not alter an in-flight checkout.
type CartSnapshot struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
}

// ShippingAddress holds the buyer's delivery details.
type ShippingAddress struct {
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	Email      string `json:"email" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" binding:"required"`
}

// Coupon discount types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon represents a discount coupon from the catalog.
// MaxDiscountAmount of 0 means no cap; MaxUsageCount of 0 means unlimited.
type Coupon struct {
	Code              string    `db:"code" json:"code"`
	DiscountType      string    `db:"discount_type" json:"discount_type"`
	DiscountValue     int64     `db:"discount_value" json:"discount_value"`
	MinOrderAmount    int64     `db:"min_order_amount" json:"min_order_amount"`
	MaxDiscountAmount int64     `db:"max_discount_amount" json:"max_discount_amount,omitempty"`
	ValidFrom         time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil        time.Time `db:"valid_until" json:"valid_until"`
	MaxUsageCount     int       `db:"max_usage_count" json:"max_usage_count,omitempty"`
	CurrentUsageCount int       `db:"current_usage_count" json:"current_usage_count"`
	IsActive          bool      `db:"is_active" json:"is_active"`
}

// PriceBreakdown is the itemized decomposition of the charged amount.
// Invariant: Total = Subtotal + ShippingFee + CODSurcharge - CouponDiscount.
type PriceBreakdown struct {
	Subtotal       int64 `db:"subtotal" json:"subtotal"`
	ShippingFee    int64 `db:"shipping_fee" json:"shipping_fee"`
	CouponDiscount int64 `db:"coupon_discount" json:"coupon_discount"`
	CODSurcharge   int64 `db:"cod_surcharge" json:"cod_surcharge"`
	Total          int64 `db:"total" json:"total"`
}

// Payment methods
const (
	PaymentMethodCOD     = "cod"
	PaymentMethodInstant = "instant"
	PaymentMethodGateway = "gateway"
)

// Payment attempt statuses
const (
	AttemptStatusInitiated    = "initiated"
	AttemptStatusAwaitingUser = "awaiting_user"
	AttemptStatusSucceeded    = "succeeded"
	AttemptStatusFailed       = "failed"
	AttemptStatusCancelled    = "cancelled"
)

// PaymentAttempt is one attempt to collect payment. A retried payment
// is a fresh attempt, never a mutated one.
type PaymentAttempt struct {
	ID               int64     `db:"id" json:"id"`
	AttemptToken     string    `db:"attempt_token" json:"attempt_token"`
	SessionID        string    `db:"session_id" json:"session_id"`
	Method           string    `db:"method" json:"method"`
	Amount           int64     `db:"amount" json:"amount"`
	GatewayOrderID   string    `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string    `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	Signature        string    `db:"signature" json:"-"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Payment statuses on an order
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order is the durable record created exactly once per accepted
// payment attempt. PaymentRef is the idempotency key: the gateway
// payment id for gateway orders, the local order token otherwise.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	OrderNumber     string          `db:"order_number" json:"order_number"`
	SessionID       string          `db:"session_id" json:"session_id"`
	PaymentRef      string          `db:"payment_ref" json:"payment_ref"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	PaymentStatus   string          `db:"payment_status" json:"payment_status"`
	OrderStatus     string          `db:"order_status" json:"order_status"`
	CouponCode      string          `db:"coupon_code" json:"coupon_code,omitempty"`
	Breakdown       PriceBreakdown  `json:"breakdown"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Items           []CartItem      `json:"items"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentAudit is an idempotent audit row recorded by the audit worker
// for every checkout event it consumes.
type PaymentAudit struct {
	EventID    string    `db:"event_id"`
	EventType  string    `db:"event_type"`
	SessionID  string    `db:"session_id"`
	PaymentRef string    `db:"payment_ref"`
	Amount     int64     `db:"amount"`
	Detail     string    `db:"detail"`
	RecordedAt time.Time `db:"recorded_at"`
}
