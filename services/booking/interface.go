package booking

import (
	"context"
	"time"

	"soko/models"
)

// BookingService is the public contract of the booking lifecycle manager.
type BookingService interface {
	ListAvailability(ctx context.Context, serviceID string, from, to time.Time) ([]models.AvailableSlot, error)
	Reserve(ctx context.Context, serviceID, customerID string, slotStart time.Time) (*models.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID, customerID, phoneNumber string) (*models.Payment, error)
	Cancel(ctx context.Context, bookingID, customerID string) (*models.Booking, error)
	CheckIn(ctx context.Context, bookingID string) (*models.Booking, error)
}

// PaymentInitiator is the slice of the settlement coordinator the lifecycle
// manager needs: push a payment prompt for a pending booking.
type PaymentInitiator interface {
	Initiate(ctx context.Context, booking *models.Booking, phoneNumber string, amount, accessFee float64) (*models.Payment, error)
}
