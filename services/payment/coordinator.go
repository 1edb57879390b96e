package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bookingRepo "soko/database/repository/booking"
	paymentRepo "soko/database/repository/payment"
	"soko/models"
	bookingSvc "soko/services/booking"
	"soko/services/notification"
	"soko/utils"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskPollPayment is the queue task polling the gateway for a payment whose
// callback has not arrived.
const TaskPollPayment = "payment:poll"

// PollPayload is the asynq payload for TaskPollPayment.
type PollPayload struct {
	CheckoutRequestID string `json:"checkout_request_id"`
}

// NewPollTask builds the poll task for a checkout request id.
func NewPollTask(checkoutRequestID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PollPayload{CheckoutRequestID: checkoutRequestID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal poll payload: %w", err)
	}
	return asynq.NewTask(TaskPollPayment, payload), nil
}

// BookingSettler is the slice of the booking lifecycle manager the coordinator
// needs: confirm a booking on successful payment, release its hold on failure.
type BookingSettler interface {
	ConfirmBooking(ctx context.Context, bookingID string) error
	ReleaseBooking(ctx context.Context, bookingID string) error
}

// CommissionLedger credits a referral commission for a paid booking.
type CommissionLedger interface {
	Credit(ctx context.Context, booking models.Booking, payment models.Payment) (*models.ReferralEarning, error)
}

// SettlementCoordinator drives the async payment flow: initiate a gateway
// prompt, reconcile the eventual outcome, and retry half-finished settlements.
type SettlementCoordinator interface {
	Initiate(ctx context.Context, booking *models.Booking, phoneNumber string, amount, accessFee float64) (*models.Payment, error)
	Reconcile(ctx context.Context, outcome models.PaymentOutcome) error
	PollStatus(ctx context.Context, checkoutRequestID string) error
	RetrySettlement(ctx context.Context, olderThan time.Time) error
}

// DefaultSettlementCoordinator is the production implementation.
type DefaultSettlementCoordinator struct {
	Gateway   GatewayClient
	Payments  paymentRepo.PaymentRepository
	Bookings  bookingRepo.BookingRepository
	Settler   BookingSettler
	Ledger    CommissionLedger
	Notifier  notification.Service
	Queue     *asynq.Client
	PollDelay time.Duration
}

func (c *DefaultSettlementCoordinator) pollDelay() time.Duration {
	if c.PollDelay > 0 {
		return c.PollDelay
	}
	return 2 * time.Minute
}

// Initiate pushes a payment prompt for a pending booking and records the
// pending payment. A poll task is scheduled in case the gateway callback never
// arrives.
func (c *DefaultSettlementCoordinator) Initiate(ctx context.Context, booking *models.Booking, phoneNumber string, amount, accessFee float64) (*models.Payment, error) {
	logger := utils.GetLogger()

	code, err := utils.GeneratePaymentCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment code: %w", err)
	}

	push, err := c.Gateway.PushPrompt(ctx, phoneNumber, amount, code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	payment := &models.Payment{
		ID:                uuid.New().String(),
		BookingID:         booking.ID,
		CustomerID:        booking.CustomerID,
		PhoneNumber:       phoneNumber,
		Amount:            amount,
		AccessFee:         accessFee,
		Status:            models.PaymentStatusPending,
		MerchantRequestID: push.MerchantRequestID,
		CheckoutRequestID: push.CheckoutRequestID,
		UniqueCode:        code,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := c.Payments.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	c.schedulePoll(push.CheckoutRequestID)

	logger.Info("payment initiated",
		zap.String("bookingID", booking.ID),
		zap.String("checkoutRequestID", push.CheckoutRequestID),
		zap.Float64("amount", amount))
	return payment, nil
}

func (c *DefaultSettlementCoordinator) schedulePoll(checkoutRequestID string) {
	if c.Queue == nil {
		return
	}
	task, err := NewPollTask(checkoutRequestID)
	if err != nil {
		utils.GetLogger().Error("failed to build poll task", zap.Error(err))
		return
	}
	if _, err := c.Queue.Enqueue(task, asynq.ProcessIn(c.pollDelay()), asynq.MaxRetry(10)); err != nil {
		utils.GetLogger().Error("failed to enqueue poll task",
			zap.String("checkoutRequestID", checkoutRequestID), zap.Error(err))
	}
}

// Reconcile applies a gateway outcome to the stored payment. It is safe to
// call any number of times with the same outcome: only the first call moves
// the payment out of pending. A terminal payment receiving a contradictory
// outcome is flagged, never rewritten.
func (c *DefaultSettlementCoordinator) Reconcile(ctx context.Context, outcome models.PaymentOutcome) error {
	logger := utils.GetLogger()

	payment, err := c.Payments.GetByCheckoutRequestID(ctx, outcome.CheckoutRequestID)
	if err != nil {
		return NewError(ErrCodePaymentNotFound,
			fmt.Sprintf("no payment for checkout request %s", outcome.CheckoutRequestID))
	}

	if payment.Terminal() {
		return c.reconcileTerminal(ctx, payment, outcome)
	}

	status := models.PaymentStatusFailed
	if outcome.Success {
		status = models.PaymentStatusSuccessful
	}
	matched, err := c.Payments.MarkTerminal(ctx, outcome.CheckoutRequestID, status, outcome.ResultDesc, outcome.PaidAt)
	if err != nil {
		return fmt.Errorf("failed to record payment outcome: %w", err)
	}
	if !matched {
		// Lost the race against a concurrent callback; re-read and compare.
		payment, err = c.Payments.GetByCheckoutRequestID(ctx, outcome.CheckoutRequestID)
		if err != nil {
			return fmt.Errorf("failed to re-read payment: %w", err)
		}
		return c.reconcileTerminal(ctx, payment, outcome)
	}

	payment.Status = status
	payment.ResultDesc = outcome.ResultDesc
	payment.PaymentDate = outcome.PaidAt

	if outcome.Success {
		return c.settle(ctx, payment)
	}

	logger.Info("payment failed, releasing booking slot",
		zap.String("bookingID", payment.BookingID),
		zap.String("resultDesc", outcome.ResultDesc))
	if err := c.Settler.ReleaseBooking(ctx, payment.BookingID); err != nil {
		logger.Error("failed to release booking after failed payment",
			zap.String("bookingID", payment.BookingID), zap.Error(err))
	}
	c.notify(ctx, models.EventPaymentFailed, models.NotificationPayload{
		CustomerID: payment.CustomerID,
		Title:      "Payment failed",
		Body:       outcome.ResultDesc,
		Data:       map[string]string{"booking_id": payment.BookingID},
	})
	return nil
}

// reconcileTerminal handles an outcome arriving for an already-terminal
// payment: an agreeing outcome is a duplicate and a no-op, a contradicting
// one marks the payment anomalous for manual review.
func (c *DefaultSettlementCoordinator) reconcileTerminal(ctx context.Context, payment *models.Payment, outcome models.PaymentOutcome) error {
	logger := utils.GetLogger()

	agreed := (payment.Status == models.PaymentStatusSuccessful) == outcome.Success
	if agreed {
		logger.Info("duplicate payment callback ignored",
			zap.String("checkoutRequestID", outcome.CheckoutRequestID),
			zap.String("status", payment.Status))
		return nil
	}

	logger.Warn("conflicting payment callback",
		zap.String("checkoutRequestID", outcome.CheckoutRequestID),
		zap.String("storedStatus", payment.Status),
		zap.Bool("callbackSuccess", outcome.Success))
	desc := fmt.Sprintf("callback success=%t contradicts stored status %s: %s",
		outcome.Success, payment.Status, outcome.ResultDesc)
	if err := c.Payments.FlagAnomaly(ctx, payment.ID, desc); err != nil {
		return fmt.Errorf("failed to flag payment anomaly: %w", err)
	}
	c.notify(ctx, models.EventPaymentAnomaly, models.NotificationPayload{
		CustomerID: payment.CustomerID,
		Title:      "Payment under review",
		Body:       "We received conflicting confirmations for your payment and are reviewing it.",
		Data:       map[string]string{"booking_id": payment.BookingID, "payment_id": payment.ID},
	})
	return nil
}

// settle completes a successful payment: confirm the booking, credit the
// referral commission, then stamp the payment settled. Any step failing
// leaves SettledAt unset so the worker retries; every step tolerates being
// repeated. A booking that can no longer be confirmed (its hold expired and
// the slot may be gone) is an anomaly: the payment is flagged for manual
// review, never retried.
func (c *DefaultSettlementCoordinator) settle(ctx context.Context, payment *models.Payment) error {
	logger := utils.GetLogger()

	if err := c.Settler.ConfirmBooking(ctx, payment.BookingID); err != nil {
		if bookingSvc.HasCode(err, bookingSvc.CodeInvalidTransition) {
			return c.flagUnconfirmable(ctx, payment, err)
		}
		return fmt.Errorf("failed to confirm booking %s: %w", payment.BookingID, err)
	}

	bk, err := c.Bookings.GetBookingByID(ctx, payment.BookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking %s: %w", payment.BookingID, err)
	}

	earning, err := c.Ledger.Credit(ctx, *bk, *payment)
	if err != nil {
		return fmt.Errorf("failed to credit commission for booking %s: %w", payment.BookingID, err)
	}

	if err := c.Payments.MarkSettled(ctx, payment.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark payment settled: %w", err)
	}

	logger.Info("payment settled",
		zap.String("bookingID", payment.BookingID),
		zap.String("paymentID", payment.ID))

	c.notify(ctx, models.EventBookingConfirmed, models.NotificationPayload{
		CustomerID: payment.CustomerID,
		Title:      "Booking confirmed",
		Body:       fmt.Sprintf("Your payment %s was received and your booking is confirmed.", payment.UniqueCode),
		Data:       map[string]string{"booking_id": payment.BookingID},
	})
	if earning != nil {
		c.notify(ctx, models.EventCommissionEarned, models.NotificationPayload{
			CustomerID: earning.ReferrerID,
			Title:      "Referral commission earned",
			Body:       fmt.Sprintf("You earned %.2f from a referral booking.", earning.Amount),
			Data:       map[string]string{"booking_id": payment.BookingID, "earning_id": earning.ID},
		})
	}
	return nil
}

// flagUnconfirmable handles money received for a booking stuck in a state
// settlement cannot resolve, e.g. the hold expired and another customer took
// the slot. The payment keeps its successful status but is flagged out of the
// retry loop; a human decides between refund and re-accommodation.
func (c *DefaultSettlementCoordinator) flagUnconfirmable(ctx context.Context, payment *models.Payment, cause error) error {
	utils.GetLogger().Warn("successful payment for unconfirmable booking",
		zap.String("paymentID", payment.ID),
		zap.String("bookingID", payment.BookingID),
		zap.Error(cause))

	desc := fmt.Sprintf("payment succeeded but booking cannot be confirmed: %v", cause)
	if err := c.Payments.FlagAnomaly(ctx, payment.ID, desc); err != nil {
		return fmt.Errorf("failed to flag payment anomaly: %w", err)
	}
	c.notify(ctx, models.EventPaymentAnomaly, models.NotificationPayload{
		CustomerID: payment.CustomerID,
		Title:      "Payment under review",
		Body:       "Your payment was received but the booking could not be confirmed. Our team is reviewing it.",
		Data:       map[string]string{"booking_id": payment.BookingID, "payment_id": payment.ID},
	})
	return nil
}

// PollStatus queries the gateway for a payment still pending locally. While
// the gateway is processing, an error is returned so the queue retries later.
func (c *DefaultSettlementCoordinator) PollStatus(ctx context.Context, checkoutRequestID string) error {
	payment, err := c.Payments.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return NewError(ErrCodePaymentNotFound,
			fmt.Sprintf("no payment for checkout request %s", checkoutRequestID))
	}
	if payment.Terminal() {
		if payment.Status == models.PaymentStatusSuccessful && payment.SettledAt == nil && !payment.AnomalyFlag {
			return c.settle(ctx, payment)
		}
		return nil
	}

	outcome, err := c.Gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return err
	}
	if outcome == nil {
		return fmt.Errorf("payment %s still processing at gateway", checkoutRequestID)
	}
	return c.Reconcile(ctx, *outcome)
}

// RetrySettlement finishes settlements interrupted between payment success and
// the settled stamp.
func (c *DefaultSettlementCoordinator) RetrySettlement(ctx context.Context, olderThan time.Time) error {
	payments, err := c.Payments.ListUnsettledSuccessful(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("failed to list unsettled payments: %w", err)
	}
	for i := range payments {
		p := payments[i]
		if err := c.settle(ctx, &p); err != nil {
			utils.GetLogger().Error("settlement retry failed",
				zap.String("paymentID", p.ID), zap.Error(err))
		}
	}
	return nil
}

func (c *DefaultSettlementCoordinator) notify(ctx context.Context, event string, payload models.NotificationPayload) {
	if c.Notifier == nil {
		return
	}
	if err := c.Notifier.Notify(ctx, event, payload); err != nil {
		utils.GetLogger().Warn("notification failed", zap.String("event", event), zap.Error(err))
	}
}
