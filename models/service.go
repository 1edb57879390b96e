package models

import "time"

// Service statuses.
const (
	ServiceStatusActive    = "active"
	ServiceStatusInactive  = "inactive"
	ServiceStatusSuspended = "suspended"
	ServiceStatusPending   = "pending"
)

// Cancellation policies.
const (
	CancellationPolicyStandard = "standard"
	CancellationPolicyFlexible = "flexible"
)

// Service is a bookable offering that belongs to a store.
type Service struct {
	ID                    string    `bson:"id" json:"id"`
	StoreID               string    `bson:"store_id" json:"store_id"`
	Name                  string    `bson:"name" json:"name"`
	DurationMinutes       int       `bson:"duration_minutes" json:"duration_minutes"`
	SlotIntervalMinutes   int       `bson:"slot_interval_minutes,omitempty" json:"slot_interval_minutes,omitempty"` // 0 means "use duration"
	BufferMinutes         int       `bson:"buffer_minutes,omitempty" json:"buffer_minutes,omitempty"`
	MaxConcurrentBookings int       `bson:"max_concurrent_bookings" json:"max_concurrent_bookings"`
	AllowOverbooking      bool      `bson:"allow_overbooking" json:"allow_overbooking"`
	MinAdvanceMinutes     int       `bson:"min_advance_minutes,omitempty" json:"min_advance_minutes,omitempty"`
	MaxAdvanceMinutes     int       `bson:"max_advance_minutes,omitempty" json:"max_advance_minutes,omitempty"`
	OpenMinute            int       `bson:"open_minute" json:"open_minute"`   // minutes from midnight (e.g., 480 for 8:00 AM)
	CloseMinute           int       `bson:"close_minute" json:"close_minute"` // minutes from midnight (e.g., 1080 for 6:00 PM)
	BookingEnabled        bool      `bson:"booking_enabled" json:"booking_enabled"`
	Status                string    `bson:"status" json:"status"`
	Price                 float64   `bson:"price" json:"price"`
	AccessFee             float64   `bson:"access_fee" json:"access_fee"` // commission base for referral earnings
	MinCancellationHours  int       `bson:"min_cancellation_hours,omitempty" json:"min_cancellation_hours,omitempty"`
	CancellationPolicy    string    `bson:"cancellation_policy,omitempty" json:"cancellation_policy,omitempty"`
	CreatedAt             time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time `bson:"updated_at" json:"updated_at"`
}

// SlotInterval returns the candidate-slot step, falling back to the service duration.
func (s Service) SlotInterval() int {
	if s.SlotIntervalMinutes > 0 {
		return s.SlotIntervalMinutes
	}
	return s.DurationMinutes
}

// OccupiedMinutes is how long one booking holds the slot: duration plus buffer.
func (s Service) OccupiedMinutes() int {
	return s.DurationMinutes + s.BufferMinutes
}

// Bookable reports whether the service admits new bookings at all.
func (s Service) Bookable() bool {
	return s.BookingEnabled && s.Status == ServiceStatusActive
}
