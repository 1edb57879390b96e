package models

import "time"

// AvailableSlot is one candidate booking start time annotated with occupancy.
// CapacityRemaining is clamped at zero unless the service allows overbooking,
// in which case negative headroom is reported as-is.
type AvailableSlot struct {
	ServiceID         string    `json:"service_id"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"` // start + duration (buffer excluded from the display window)
	OccupiedCount     int       `json:"occupied_count"`
	CapacityRemaining int       `json:"capacity_remaining"`
	Overbookable      bool      `json:"overbookable,omitempty"`
}
