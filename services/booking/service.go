package booking

import (
	"context"
	"fmt"
	"time"

	bookingRepo "soko/database/repository/booking"
	catalogRepo "soko/database/repository/catalog"
	"soko/models"
	"soko/services/notification"
	"soko/utils"

	"go.uber.org/zap"
)

// DefaultBookingService orchestrates availability, reservation and the
// booking state machine. Payment settlement calls back into it through
// ConfirmBooking and ReleaseBooking.
type DefaultBookingService struct {
	CatalogRepo catalogRepo.CatalogRepository
	BookingRepo bookingRepo.BookingRepository
	Engine      ReservationEngine
	Payments    PaymentInitiator
	Notifier    notification.Service
}

func (s *DefaultBookingService) ListAvailability(ctx context.Context, serviceID string, from, to time.Time) ([]models.AvailableSlot, error) {
	svc, err := s.CatalogRepo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}

	now := time.Now()
	pendingCutoff := now.Add(-HoldGracePeriod)
	bookings, err := s.BookingRepo.ListActiveInRange(ctx, serviceID, from, to, pendingCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}

	return ComputeAvailableSlots(*svc, bookings, from, to, now), nil
}

func (s *DefaultBookingService) Reserve(ctx context.Context, serviceID, customerID string, slotStart time.Time) (*models.Booking, error) {
	svc, err := s.CatalogRepo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	return s.Engine.Reserve(ctx, *svc, customerID, slotStart)
}

// ConfirmPayment issues the payment prompt for a pending booking. The actual
// confirmation happens asynchronously when the gateway callback (or the
// status poll) reconciles the payment.
func (s *DefaultBookingService) ConfirmPayment(ctx context.Context, bookingID, customerID, phoneNumber string) (*models.Payment, error) {
	b, err := s.BookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b.CustomerID != customerID {
		return nil, NewError(CodeNotAllowed, "booking belongs to another customer")
	}
	if b.Status != models.BookingStatusPending {
		return nil, NewError(CodeInvalidTransition, fmt.Sprintf("booking %s is %s, only pending bookings can be paid", b.ID, b.Status))
	}

	svc, err := s.CatalogRepo.GetServiceByID(ctx, b.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}

	return s.Payments.Initiate(ctx, b, phoneNumber, svc.Price, svc.AccessFee)
}

func (s *DefaultBookingService) Cancel(ctx context.Context, bookingID, customerID string) (*models.Booking, error) {
	b, err := s.BookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b.CustomerID != customerID {
		return nil, NewError(CodeNotAllowed, "booking belongs to another customer")
	}
	if b.Terminal() {
		return nil, NewError(CodeInvalidTransition, fmt.Sprintf("booking %s is already %s", b.ID, b.Status))
	}

	if b.Status == models.BookingStatusConfirmed {
		svc, err := s.CatalogRepo.GetServiceByID(ctx, b.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load service: %w", err)
		}
		window := time.Duration(svc.MinCancellationHours) * time.Hour
		if svc.CancellationPolicy != models.CancellationPolicyFlexible && window > 0 && time.Until(b.ScheduledAt) < window {
			return nil, NewError(CodeCancellationWindowClosed,
				fmt.Sprintf("bookings cannot be cancelled within %d hours of the scheduled time", svc.MinCancellationHours))
		}
	}

	ok, err := s.BookingRepo.UpdateStatusIf(ctx, b.ID,
		[]string{models.BookingStatusPending, models.BookingStatusConfirmed},
		models.BookingStatusCancelled, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !ok {
		return nil, NewError(CodeInvalidTransition, fmt.Sprintf("booking %s changed state concurrently", b.ID))
	}
	b.Status = models.BookingStatusCancelled

	s.notify(ctx, models.EventBookingCancelled, models.NotificationPayload{
		CustomerID: b.CustomerID,
		Title:      "Booking cancelled",
		Body:       fmt.Sprintf("Your booking for %s was cancelled.", b.ScheduledAt.Format("Mon Jan 2 15:04")),
		Data:       map[string]string{"bookingId": b.ID},
	})
	return b, nil
}

func (s *DefaultBookingService) CheckIn(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := s.BookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}

	now := time.Now()
	ok, err := s.BookingRepo.UpdateStatusIf(ctx, bookingID,
		[]string{models.BookingStatusConfirmed},
		models.BookingStatusCheckedIn, &now)
	if err != nil {
		return nil, fmt.Errorf("failed to check in booking: %w", err)
	}
	if !ok {
		return nil, NewError(CodeInvalidTransition, fmt.Sprintf("booking %s is %s, only confirmed bookings can check in", bookingID, b.Status))
	}
	b.Status = models.BookingStatusCheckedIn
	b.CheckedInAt = &now
	return b, nil
}

// ConfirmBooking finalizes a booking after its payment succeeded. Only a
// pending booking can be confirmed: an expired hold already released its
// capacity, possibly to another customer, so a late payment must not revive
// it. An already confirmed booking is a no-op so settlement retries stay
// idempotent.
func (s *DefaultBookingService) ConfirmBooking(ctx context.Context, bookingID string) error {
	ok, err := s.BookingRepo.UpdateStatusIf(ctx, bookingID,
		[]string{models.BookingStatusPending},
		models.BookingStatusConfirmed, nil)
	if err != nil {
		return fmt.Errorf("failed to confirm booking %s: %w", bookingID, err)
	}
	if ok {
		return nil
	}

	b, err := s.BookingRepo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}
	switch b.Status {
	case models.BookingStatusConfirmed, models.BookingStatusCheckedIn:
		return nil
	default:
		return NewError(CodeInvalidTransition, fmt.Sprintf("booking %s is %s and cannot be confirmed", bookingID, b.Status))
	}
}

// ReleaseBooking gives the slot back after a failed payment. Bookings no
// longer pending are left untouched.
func (s *DefaultBookingService) ReleaseBooking(ctx context.Context, bookingID string) error {
	ok, err := s.BookingRepo.UpdateStatusIf(ctx, bookingID,
		[]string{models.BookingStatusPending},
		models.BookingStatusCancelled, nil)
	if err != nil {
		return fmt.Errorf("failed to release booking %s: %w", bookingID, err)
	}
	if !ok {
		utils.GetLogger().Info("release skipped, booking no longer pending", zap.String("bookingID", bookingID))
	}
	return nil
}

func (s *DefaultBookingService) notify(ctx context.Context, event string, payload models.NotificationPayload) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, event, payload); err != nil {
		utils.GetLogger().Warn("notification failed", zap.String("event", event), zap.Error(err))
	}
}
