package models

import "time"

// Booking statuses. CheckedIn, Cancelled and Expired are terminal.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCheckedIn = "checked_in"
	BookingStatusCancelled = "cancelled"
	BookingStatusExpired   = "expired"
)

// Booking is one customer's claim on a service at a specific start time.
type Booking struct {
	ID              string     `bson:"id" json:"id"`
	ServiceID       string     `bson:"service_id" json:"service_id"`
	StoreID         string     `bson:"store_id" json:"store_id"`
	CustomerID      string     `bson:"customer_id" json:"customer_id"`
	ScheduledAt     time.Time  `bson:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int        `bson:"duration_minutes" json:"duration_minutes"` // snapshot of service duration at reserve time
	BufferMinutes   int        `bson:"buffer_minutes,omitempty" json:"buffer_minutes,omitempty"`
	OccupiedUntil   time.Time  `bson:"occupied_until" json:"occupied_until"` // scheduled_at + duration + buffer, stored for overlap queries
	Amount          float64    `bson:"amount" json:"amount"`
	Status          string     `bson:"status" json:"status"`
	CheckedInAt     *time.Time `bson:"checked_in_at,omitempty" json:"checked_in_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the booking counts toward slot occupancy.
// A pending booking older than holdGrace is treated as expired even if the
// sweep has not rewritten its status yet.
func (b Booking) Active(now time.Time, holdGrace time.Duration) bool {
	switch b.Status {
	case BookingStatusConfirmed, BookingStatusCheckedIn:
		return true
	case BookingStatusPending:
		return now.Sub(b.CreatedAt) < holdGrace
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed.
func (b Booking) Terminal() bool {
	switch b.Status {
	case BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusExpired:
		return true
	}
	return false
}
