package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"
)

// CreatePaymentAttempt inserts a fresh payment attempt row.
func (s *Store) CreatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (attempt_token, session_id, method, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		attempt.AttemptToken, attempt.SessionID, attempt.Method,
		attempt.Amount, attempt.Status).
		Scan(&attempt.ID, &attempt.CreatedAt, &attempt.UpdatedAt)
}

// UpdateAttemptStatus moves an attempt through its lifecycle.
func (s *Store) UpdateAttemptStatus(ctx context.Context, attemptToken, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payment_attempts SET status = $1, updated_at = NOW() WHERE attempt_token = $2",
		status, attemptToken)
	return err
}

// SetAttemptGatewayResult records the gateway identifiers on an attempt.
func (s *Store) SetAttemptGatewayResult(ctx context.Context, attemptToken, gatewayOrderID, gatewayPaymentID, signature string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payment_attempts
		SET gateway_order_id = $1, gateway_payment_id = $2, signature = $3, updated_at = NOW()
		WHERE attempt_token = $4`,
		gatewayOrderID, gatewayPaymentID, signature, attemptToken)
	return err
}

// GetPaymentAttempt retrieves an attempt by token.
func (s *Store) GetPaymentAttempt(ctx context.Context, attemptToken string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := s.db.GetContext(ctx, &attempt,
		"SELECT * FROM payment_attempts WHERE attempt_token = $1", attemptToken)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment attempt not found: %s", attemptToken)
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
