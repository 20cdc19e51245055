package store

import (
	"context"

	"checkout-service/internal/models"
)

// RecordPaymentAudit inserts an audit row for a consumed checkout
// event. Keyed by event id, so a redelivered event records nothing.
func (s *Store) RecordPaymentAudit(ctx context.Context, audit *models.PaymentAudit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_audit (event_id, event_type, session_id, payment_ref, amount, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		audit.EventID, audit.EventType, audit.SessionID,
		audit.PaymentRef, audit.Amount, audit.Detail)
	return err
}

// IsEventAudited checks whether an event has already been recorded.
func (s *Store) IsEventAudited(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM payment_audit WHERE event_id = $1)", eventID)
	return exists, err
}
