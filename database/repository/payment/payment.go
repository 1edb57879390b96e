package paymentRepo

import (
	"context"
	"time"

	"soko/models"
)

// PaymentRepository persists payment attempts. Terminal transitions are
// conditional writes: a payment already terminal never matches again, which
// is what makes reconciliation idempotent at the storage layer.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)
	GetByUniqueCode(ctx context.Context, code string) (*models.Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (*models.Payment, error)

	// MarkTerminal moves a pending payment to successful or failed. Returns
	// false when the payment was no longer pending (duplicate callback).
	MarkTerminal(ctx context.Context, checkoutRequestID, status, resultDesc string, paymentDate *time.Time) (bool, error)

	// MarkSettled records that booking confirmation and commission credit both
	// completed for a successful payment.
	MarkSettled(ctx context.Context, paymentID string, at time.Time) error

	// FlagAnomaly marks a payment that received a conflicting callback after
	// reaching a terminal state. The stored outcome is never overwritten.
	FlagAnomaly(ctx context.Context, paymentID, desc string) error

	// ListUnsettledSuccessful returns successful payments whose settlement has
	// not completed, for the worker to retry. Anomaly-flagged payments are
	// excluded; they wait for manual review.
	ListUnsettledSuccessful(ctx context.Context, olderThan time.Time) ([]models.Payment, error)
}
