package referral

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	customerRepo "soko/database/repository/customer"
	referralRepo "soko/database/repository/referral"
	"soko/models"
	"soko/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCommissionRate applies when no rate is configured.
const DefaultCommissionRate = 0.30

// Ledger records referral commissions. Credit is deterministic and
// idempotent: at most one earning ever exists per booking, re-invocation
// after a crash detects the existing record and skips.
type Ledger interface {
	// Credit returns the created earning, or (nil, nil) when the credit was
	// skipped: the customer has no referrer or the booking is already
	// credited.
	Credit(ctx context.Context, booking models.Booking, payment models.Payment) (*models.ReferralEarning, error)
}

// DefaultLedger is the production implementation.
type DefaultLedger struct {
	Customers      customerRepo.CustomerRepository
	Earnings       referralRepo.ReferralRepository
	CommissionRate float64
}

func (l *DefaultLedger) rate() float64 {
	if l.CommissionRate > 0 {
		return l.CommissionRate
	}
	return DefaultCommissionRate
}

func (l *DefaultLedger) Credit(ctx context.Context, booking models.Booking, payment models.Payment) (*models.ReferralEarning, error) {
	logger := utils.GetLogger()

	customer, err := l.Customers.GetCustomerByID(ctx, booking.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer %s: %w", booking.CustomerID, err)
	}
	if customer.ReferredBy == "" {
		return nil, nil
	}

	existing, err := l.Earnings.GetByBookingID(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing earning: %w", err)
	}
	if existing != nil {
		logger.Info("commission already credited, skipping",
			zap.String("bookingID", booking.ID), zap.String("earningID", existing.ID))
		return nil, nil
	}

	// Rate and base are snapshotted onto the record: later rate changes never
	// alter existing earnings.
	rate := l.rate()
	earning := &models.ReferralEarning{
		ID:             uuid.New().String(),
		ReferrerID:     customer.ReferredBy,
		RefereeID:      customer.ID,
		BookingID:      booking.ID,
		Amount:         roundToCents(payment.AccessFee * rate),
		AccessFee:      payment.AccessFee,
		CommissionRate: rate,
		Status:         models.EarningStatusPending,
		CreatedAt:      time.Now(),
	}

	if err := l.Earnings.CreateEarning(ctx, earning); err != nil {
		// A concurrent credit won the unique index race; the invariant held.
		if errors.Is(err, referralRepo.ErrAlreadyCredited) {
			logger.Info("commission credited concurrently, skipping", zap.String("bookingID", booking.ID))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create earning: %w", err)
	}

	logger.Info("commission credited",
		zap.String("bookingID", booking.ID),
		zap.String("referrerID", earning.ReferrerID),
		zap.Float64("amount", earning.Amount))
	return earning, nil
}

func roundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}
