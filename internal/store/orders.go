package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/internal/models"
)

type orderRow struct {
	ID             int64     `db:"id"`
	OrderNumber    string    `db:"order_number"`
	SessionID      string    `db:"session_id"`
	PaymentRef     string    `db:"payment_ref"`
	PaymentMethod  string    `db:"payment_method"`
	PaymentStatus  string    `db:"payment_status"`
	OrderStatus    string    `db:"order_status"`
	CouponCode     string    `db:"coupon_code"`
	Subtotal       int64     `db:"subtotal"`
	ShippingFee    int64     `db:"shipping_fee"`
	CouponDiscount int64     `db:"coupon_discount"`
	CODSurcharge   int64     `db:"cod_surcharge"`
	Total          int64     `db:"total"`
	AddressJSON    []byte    `db:"shipping_address"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// CreateOrder inserts an order and its items. The insert is an upsert
// keyed by payment_ref: when an order for the ref already exists no new
// row is written and created is false. This is the storage half of the
// finalizer's idempotency guarantee.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) (bool, error) {
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return false, fmt.Errorf("failed to encode shipping address: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (
			order_number, session_id, payment_ref, payment_method,
			payment_status, order_status, coupon_code,
			subtotal, shipping_fee, coupon_discount, cod_surcharge, total,
			shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (payment_ref) DO NOTHING
		RETURNING id, created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.SessionID, order.PaymentRef, order.PaymentMethod,
		order.PaymentStatus, order.OrderStatus, order.CouponCode,
		order.Breakdown.Subtotal, order.Breakdown.ShippingFee,
		order.Breakdown.CouponDiscount, order.Breakdown.CODSurcharge,
		order.Breakdown.Total, addressJSON)

	if err := row.Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			// Conflict: an order for this payment ref already exists.
			return false, nil
		}
		return false, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_ref, name, unit_price, quantity, image_ref)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, item.ProductRef, item.Name, item.UnitPrice, item.Quantity, item.ImageRef)
		if err != nil {
			return false, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// GetOrderByPaymentRef retrieves an order by its idempotency key.
func (s *Store) GetOrderByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	return s.getOrder(ctx, "SELECT * FROM orders WHERE payment_ref = $1", paymentRef)
}

// GetOrderByNumber retrieves an order by its public order number.
func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.getOrder(ctx, "SELECT * FROM orders WHERE order_number = $1", orderNumber)
}

func (s *Store) getOrder(ctx context.Context, query string, arg interface{}) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, query, arg)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:            row.ID,
		OrderNumber:   row.OrderNumber,
		SessionID:     row.SessionID,
		PaymentRef:    row.PaymentRef,
		PaymentMethod: row.PaymentMethod,
		PaymentStatus: row.PaymentStatus,
		OrderStatus:   row.OrderStatus,
		CouponCode:    row.CouponCode,
		Breakdown: models.PriceBreakdown{
			Subtotal:       row.Subtotal,
			ShippingFee:    row.ShippingFee,
			CouponDiscount: row.CouponDiscount,
			CODSurcharge:   row.CODSurcharge,
			Total:          row.Total,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}

	if err := json.Unmarshal(row.AddressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}

	err = s.db.SelectContext(ctx, &order.Items,
		"SELECT product_ref, name, unit_price, quantity, image_ref FROM order_items WHERE order_id = $1 ORDER BY id",
		row.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// UpdateOrderStatus updates the fulfillment status of an order.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderNumber, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET order_status = $1, updated_at = NOW() WHERE order_number = $2",
		status, orderNumber)
	return err
}
