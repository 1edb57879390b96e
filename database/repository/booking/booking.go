package bookingRepo

import (
	"context"
	"errors"
	"time"

	"soko/models"
)

// ErrCapacityExhausted is returned by ReserveSlotTransactionally when the
// capacity re-check inside the transaction fails.
var ErrCapacityExhausted = errors.New("slot capacity exhausted")

// BookingRepository persists bookings and enforces the capacity invariant at
// the storage layer.
type BookingRepository interface {
	GetBookingByID(ctx context.Context, bookingID string) (*models.Booking, error)

	// ListActiveInRange returns bookings for a service whose occupied interval
	// intersects [from, to) and which still count toward occupancy: confirmed,
	// checked_in, or pending created at/after pendingCutoff. Stale pending
	// holds are invisible here even before the sweep rewrites them.
	ListActiveInRange(ctx context.Context, serviceID string, from, to time.Time, pendingCutoff time.Time) ([]models.Booking, error)

	// CountActiveOverlapping counts occupying bookings intersecting
	// [windowStart, windowEnd), with the same pending-cutoff rule.
	CountActiveOverlapping(ctx context.Context, serviceID string, windowStart, windowEnd, pendingCutoff time.Time) (int, error)

	// ReserveSlotTransactionally re-checks capacity and inserts the booking as
	// one atomic unit. Returns ErrCapacityExhausted when the slot is full. The
	// capacity check is skipped when overbook is true.
	ReserveSlotTransactionally(ctx context.Context, booking *models.Booking, capacity int, overbook bool, pendingCutoff time.Time) error

	// UpdateStatusIf transitions a booking from one of the given statuses to
	// the target status. Returns false when no document matched, i.e. the
	// booking was not in an allowed source state.
	UpdateStatusIf(ctx context.Context, bookingID string, from []string, to string, checkedInAt *time.Time) (bool, error)

	// ExpireStalePending rewrites pending bookings created before cutoff to
	// expired, returning how many were swept.
	ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}
