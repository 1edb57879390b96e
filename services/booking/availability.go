package booking

import (
	"sort"
	"time"

	"soko/models"
)

// HoldGracePeriod is how long an unpaid pending booking keeps its hold on a
// slot. Expiry is lazy: availability and capacity checks stop counting a
// stale hold immediately, and the worker sweep rewrites its status later.
const HoldGracePeriod = 15 * time.Minute

// ComputeAvailableSlots computes the bookable slots for a service between
// from and to. It is a pure read over a point-in-time snapshot of bookings:
// it never mutates state and holds no locks, so it may run concurrently with
// reservations.
//
// Candidate starts are generated at the service's slot interval across its
// open hours for every date in range. A candidate is kept when its start
// falls inside the advance-booking window and either capacity remains over
// its occupied interval [start, start+duration+buffer) or the service allows
// overbooking.
func ComputeAvailableSlots(svc models.Service, bookings []models.Booking, from, to, now time.Time) []models.AvailableSlot {
	if svc.DurationMinutes <= 0 || svc.CloseMinute <= svc.OpenMinute {
		return nil
	}

	interval := time.Duration(svc.SlotInterval()) * time.Minute
	occupied := time.Duration(svc.OccupiedMinutes()) * time.Minute
	duration := time.Duration(svc.DurationMinutes) * time.Minute

	minStart := now.Add(time.Duration(svc.MinAdvanceMinutes) * time.Minute)
	var maxStart time.Time
	if svc.MaxAdvanceMinutes > 0 {
		maxStart = now.Add(time.Duration(svc.MaxAdvanceMinutes) * time.Minute)
	}

	var slots []models.AvailableSlot
	for day := midnightOf(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		open := day.Add(time.Duration(svc.OpenMinute) * time.Minute)
		close := day.Add(time.Duration(svc.CloseMinute) * time.Minute)

		for start := open; !start.Add(duration).After(close); start = start.Add(interval) {
			if start.Before(from) || !start.Before(to) {
				continue
			}
			if start.Before(minStart) {
				continue
			}
			if !maxStart.IsZero() && start.After(maxStart) {
				continue
			}

			count := countOverlapping(bookings, start, start.Add(occupied), now)
			remaining := svc.MaxConcurrentBookings - count
			if remaining <= 0 && !svc.AllowOverbooking {
				continue
			}

			slots = append(slots, models.AvailableSlot{
				ServiceID:         svc.ID,
				Start:             start,
				End:               start.Add(duration),
				OccupiedCount:     count,
				CapacityRemaining: remaining,
				Overbookable:      svc.AllowOverbooking,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

// countOverlapping counts bookings still holding capacity whose occupied
// interval intersects [start, end). Two intervals overlap when each starts
// before the other ends.
func countOverlapping(bookings []models.Booking, start, end, now time.Time) int {
	count := 0
	for _, b := range bookings {
		if !b.Active(now, HoldGracePeriod) {
			continue
		}
		if b.ScheduledAt.Before(end) && b.OccupiedUntil.After(start) {
			count++
		}
	}
	return count
}

func midnightOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
