package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingRepo "soko/database/repository/booking"
	"soko/models"

	"github.com/google/uuid"
)

// slotLockStore holds one mutex per (service, slot start) pair so the
// capacity check and the insert are mutually exclusive for that pair while
// reservations for other slots proceed in parallel.
type slotLockStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (s *slotLockStore) get(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// ReservationEngine turns an eligible slot into a pending booking while
// guaranteeing at most max_concurrent_bookings holds per slot.
type ReservationEngine interface {
	Reserve(ctx context.Context, svc models.Service, customerID string, slotStart time.Time) (*models.Booking, error)
}

// DefaultReservationEngine is our production implementation. The keyed lock
// serializes racing requests for the same slot within this process; the
// repository re-checks capacity and inserts inside one transaction, so the
// invariant survives even when the engine is bypassed.
type DefaultReservationEngine struct {
	Repo  bookingRepo.BookingRepository
	locks slotLockStore
}

func NewReservationEngine(repo bookingRepo.BookingRepository) *DefaultReservationEngine {
	return &DefaultReservationEngine{
		Repo:  repo,
		locks: slotLockStore{locks: make(map[string]*sync.Mutex)},
	}
}

func (e *DefaultReservationEngine) Reserve(ctx context.Context, svc models.Service, customerID string, slotStart time.Time) (*models.Booking, error) {
	if !svc.Bookable() {
		return nil, NewError(CodeServiceNotBookable, fmt.Sprintf("service %s does not admit new bookings", svc.ID))
	}

	now := time.Now()
	if slotStart.Before(now.Add(time.Duration(svc.MinAdvanceMinutes) * time.Minute)) {
		return nil, NewError(CodeOutsideBookingWindow,
			fmt.Sprintf("slot %s is below the minimum advance of %d minutes", slotStart.Format(time.RFC3339), svc.MinAdvanceMinutes))
	}
	if svc.MaxAdvanceMinutes > 0 && slotStart.After(now.Add(time.Duration(svc.MaxAdvanceMinutes)*time.Minute)) {
		return nil, NewError(CodeOutsideBookingWindow,
			fmt.Sprintf("slot %s is beyond the maximum advance of %d minutes", slotStart.Format(time.RFC3339), svc.MaxAdvanceMinutes))
	}
	if !onSlotGrid(svc, slotStart) {
		return nil, NewError(CodeSlotUnavailable,
			fmt.Sprintf("%s is not a valid slot start for service %s", slotStart.Format(time.RFC3339), svc.ID))
	}

	key := svc.ID + "|" + slotStart.UTC().Format(time.RFC3339)
	lock := e.locks.get(key)
	lock.Lock()
	defer lock.Unlock()

	booking := &models.Booking{
		ID:              uuid.New().String(),
		ServiceID:       svc.ID,
		StoreID:         svc.StoreID,
		CustomerID:      customerID,
		ScheduledAt:     slotStart,
		DurationMinutes: svc.DurationMinutes,
		BufferMinutes:   svc.BufferMinutes,
		OccupiedUntil:   slotStart.Add(time.Duration(svc.OccupiedMinutes()) * time.Minute),
		Amount:          svc.Price,
		Status:          models.BookingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	pendingCutoff := now.Add(-HoldGracePeriod)
	err := e.Repo.ReserveSlotTransactionally(ctx, booking, svc.MaxConcurrentBookings, svc.AllowOverbooking, pendingCutoff)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrCapacityExhausted) {
			return nil, NewError(CodeSlotUnavailable,
				fmt.Sprintf("slot %s for service %s is fully booked", slotStart.Format(time.RFC3339), svc.ID))
		}
		return nil, fmt.Errorf("failed to reserve slot: %w", err)
	}
	return booking, nil
}

// onSlotGrid validates that slotStart is one of the candidate starts the
// availability calculator would produce: inside open hours, on the interval
// grid, with the full duration fitting before close.
func onSlotGrid(svc models.Service, slotStart time.Time) bool {
	minuteOfDay := slotStart.Hour()*60 + slotStart.Minute()
	if slotStart.Second() != 0 || slotStart.Nanosecond() != 0 {
		return false
	}
	if minuteOfDay < svc.OpenMinute {
		return false
	}
	if minuteOfDay+svc.DurationMinutes > svc.CloseMinute {
		return false
	}
	return (minuteOfDay-svc.OpenMinute)%svc.SlotInterval() == 0
}
