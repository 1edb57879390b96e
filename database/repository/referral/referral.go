package referralRepo

import (
	"context"
	"errors"

	"soko/models"
)

// ErrAlreadyCredited is returned when an earning already exists for the
// booking, either found up front or caught by the unique index on insert.
var ErrAlreadyCredited = errors.New("referral earning already credited for booking")

// ReferralRepository persists commission earnings. The unique index on
// booking_id is the hard exactly-once guarantee: a crash between credit and
// acknowledgement can only ever produce a duplicate-key error on retry,
// never a second earning.
type ReferralRepository interface {
	CreateEarning(ctx context.Context, earning *models.ReferralEarning) error
	GetByBookingID(ctx context.Context, bookingID string) (*models.ReferralEarning, error)
	ListByReferrer(ctx context.Context, referrerID string) ([]models.ReferralEarning, error)
}
