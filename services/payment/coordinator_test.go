package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingRepo "soko/database/repository/booking"
	"soko/models"
	"soko/services/booking"
)

type stubGateway struct {
	pushErr  error
	outcome  *models.PaymentOutcome
	queryErr error
	pushes   int
	queries  int
}

func (g *stubGateway) PushPrompt(_ context.Context, phone string, amount float64, reference string) (*PushResult, error) {
	g.pushes++
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	return &PushResult{
		MerchantRequestID: "merch-1",
		CheckoutRequestID: "chk-1",
	}, nil
}

func (g *stubGateway) QueryStatus(_ context.Context, checkoutRequestID string) (*models.PaymentOutcome, error) {
	g.queries++
	return g.outcome, g.queryErr
}

type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*models.Payment // keyed by checkout request id
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[string]*models.Payment)}
}

func (r *memPaymentRepo) CreatePayment(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.CheckoutRequestID] = &cp
	return nil
}

func (r *memPaymentRepo) GetByCheckoutRequestID(_ context.Context, id string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, errors.New("payment not found")
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) GetByUniqueCode(_ context.Context, code string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.UniqueCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.New("payment not found")
}

func (r *memPaymentRepo) GetByBookingID(_ context.Context, bookingID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.New("payment not found")
}

func (r *memPaymentRepo) MarkTerminal(_ context.Context, checkoutRequestID, status, resultDesc string, paymentDate *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[checkoutRequestID]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.ResultDesc = resultDesc
	p.PaymentDate = paymentDate
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *memPaymentRepo) MarkSettled(_ context.Context, paymentID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID == paymentID {
			p.SettledAt = &at
			return nil
		}
	}
	return errors.New("payment not found")
}

func (r *memPaymentRepo) FlagAnomaly(_ context.Context, paymentID, desc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID == paymentID {
			p.AnomalyFlag = true
			p.ResultDesc = desc
			return nil
		}
	}
	return errors.New("payment not found")
}

func (r *memPaymentRepo) ListUnsettledSuccessful(_ context.Context, olderThan time.Time) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.Status == models.PaymentStatusSuccessful && p.SettledAt == nil && !p.AnomalyFlag && p.UpdatedAt.Before(olderThan) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) get(checkoutRequestID string) models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.payments[checkoutRequestID]
}

// stubBookingReader only serves GetBookingByID; the coordinator never touches
// the rest of the repository.
type stubBookingReader struct {
	bookingRepo.BookingRepository
	booking models.Booking
}

func (s *stubBookingReader) GetBookingByID(_ context.Context, id string) (*models.Booking, error) {
	if id != s.booking.ID {
		return nil, errors.New("booking not found")
	}
	cp := s.booking
	return &cp, nil
}

type recordingSettler struct {
	confirmed  []string
	released   []string
	confirmErr error
}

func (s *recordingSettler) ConfirmBooking(_ context.Context, bookingID string) error {
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmed = append(s.confirmed, bookingID)
	return nil
}

func (s *recordingSettler) ReleaseBooking(_ context.Context, bookingID string) error {
	s.released = append(s.released, bookingID)
	return nil
}

// recordingLedger credits at most once per booking, like the real ledger.
type recordingLedger struct {
	credited map[string]int
}

func (l *recordingLedger) Credit(_ context.Context, b models.Booking, p models.Payment) (*models.ReferralEarning, error) {
	if l.credited == nil {
		l.credited = make(map[string]int)
	}
	l.credited[b.ID]++
	if l.credited[b.ID] > 1 {
		return nil, nil
	}
	return &models.ReferralEarning{ID: "earn-1", ReferrerID: "ref-1", BookingID: b.ID, Amount: 30}, nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event string, _ models.NotificationPayload) error {
	n.events = append(n.events, event)
	return nil
}

type fixture struct {
	coordinator *DefaultSettlementCoordinator
	gateway     *stubGateway
	payments    *memPaymentRepo
	settler     *recordingSettler
	ledger      *recordingLedger
	notifier    *recordingNotifier
}

func newFixture() *fixture {
	gateway := &stubGateway{}
	payments := newMemPaymentRepo()
	settler := &recordingSettler{}
	ledger := &recordingLedger{}
	notifier := &recordingNotifier{}
	booking := models.Booking{ID: "bk-1", CustomerID: "cust-1", Status: models.BookingStatusPending}

	return &fixture{
		coordinator: &DefaultSettlementCoordinator{
			Gateway:  gateway,
			Payments: payments,
			Bookings: &stubBookingReader{booking: booking},
			Settler:  settler,
			Ledger:   ledger,
			Notifier: notifier,
		},
		gateway:  gateway,
		payments: payments,
		settler:  settler,
		ledger:   ledger,
		notifier: notifier,
	}
}

func (f *fixture) initiate(t *testing.T) *models.Payment {
	t.Helper()
	booking := &models.Booking{ID: "bk-1", CustomerID: "cust-1", Status: models.BookingStatusPending}
	p, err := f.coordinator.Initiate(context.Background(), booking, "254712345678", 2000, 100)
	require.NoError(t, err)
	return p
}

func successOutcome() models.PaymentOutcome {
	now := time.Now()
	return models.PaymentOutcome{
		CheckoutRequestID: "chk-1",
		Success:           true,
		ResultDesc:        "The service request is processed successfully.",
		PaidAt:            &now,
	}
}

func failureOutcome() models.PaymentOutcome {
	return models.PaymentOutcome{
		CheckoutRequestID: "chk-1",
		Success:           false,
		ResultDesc:        "Request cancelled by user",
	}
}

func TestInitiate_RecordsPendingPayment(t *testing.T) {
	f := newFixture()
	p := f.initiate(t)

	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.Equal(t, "chk-1", p.CheckoutRequestID)
	assert.Equal(t, "merch-1", p.MerchantRequestID)
	assert.Len(t, p.UniqueCode, 8)
	assert.Equal(t, 2000.0, p.Amount)
	assert.Equal(t, 100.0, p.AccessFee)
	assert.Equal(t, 1, f.gateway.pushes)

	stored := f.payments.get("chk-1")
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
}

func TestInitiate_GatewayDownSurfaced(t *testing.T) {
	f := newFixture()
	f.gateway.pushErr = NewError(ErrCodeGatewayUnavailable, "connection refused")

	booking := &models.Booking{ID: "bk-1", CustomerID: "cust-1"}
	_, err := f.coordinator.Initiate(context.Background(), booking, "254712345678", 2000, 100)
	assert.True(t, HasCode(err, ErrCodeGatewayUnavailable))
	assert.Empty(t, f.payments.payments, "no payment record without a gateway accept")
}

func TestReconcile_SuccessSettles(t *testing.T) {
	f := newFixture()
	f.initiate(t)

	require.NoError(t, f.coordinator.Reconcile(context.Background(), successOutcome()))

	stored := f.payments.get("chk-1")
	assert.Equal(t, models.PaymentStatusSuccessful, stored.Status)
	require.NotNil(t, stored.SettledAt)
	assert.Equal(t, []string{"bk-1"}, f.settler.confirmed)
	assert.Equal(t, 1, f.ledger.credited["bk-1"])
	assert.Contains(t, f.notifier.events, models.EventBookingConfirmed)
	assert.Contains(t, f.notifier.events, models.EventCommissionEarned)
}

func TestReconcile_FailureReleasesBooking(t *testing.T) {
	f := newFixture()
	f.initiate(t)

	require.NoError(t, f.coordinator.Reconcile(context.Background(), failureOutcome()))

	stored := f.payments.get("chk-1")
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.Equal(t, []string{"bk-1"}, f.settler.released)
	assert.Empty(t, f.settler.confirmed)
	assert.Empty(t, f.ledger.credited)
	assert.Contains(t, f.notifier.events, models.EventPaymentFailed)
}

func TestReconcile_DuplicateCallbackIsNoOp(t *testing.T) {
	f := newFixture()
	f.initiate(t)

	require.NoError(t, f.coordinator.Reconcile(context.Background(), successOutcome()))
	require.NoError(t, f.coordinator.Reconcile(context.Background(), successOutcome()))
	require.NoError(t, f.coordinator.Reconcile(context.Background(), successOutcome()))

	assert.Equal(t, []string{"bk-1"}, f.settler.confirmed, "booking confirmed exactly once")
	assert.Equal(t, 1, f.ledger.credited["bk-1"], "commission credited exactly once")
	stored := f.payments.get("chk-1")
	assert.False(t, stored.AnomalyFlag)
}

func TestReconcile_ConflictingCallbackFlagsAnomaly(t *testing.T) {
	f := newFixture()
	f.initiate(t)

	require.NoError(t, f.coordinator.Reconcile(context.Background(), successOutcome()))
	require.NoError(t, f.coordinator.Reconcile(context.Background(), failureOutcome()))

	stored := f.payments.get("chk-1")
	assert.Equal(t, models.PaymentStatusSuccessful, stored.Status, "stored outcome is never overwritten")
	assert.True(t, stored.AnomalyFlag)
	assert.Empty(t, f.settler.released, "a settled booking is not released by a late failure")
	assert.Contains(t, f.notifier.events, models.EventPaymentAnomaly)
}

func TestReconcile_UnknownCheckoutRequest(t *testing.T) {
	f := newFixture()
	err := f.coordinator.Reconcile(context.Background(), successOutcome())
	assert.True(t, HasCode(err, ErrCodePaymentNotFound))
}

func TestPollStatus_StillProcessingRetries(t *testing.T) {
	f := newFixture()
	f.initiate(t)
	f.gateway.outcome = nil // gateway still processing

	err := f.coordinator.PollStatus(context.Background(), "chk-1")
	assert.Error(t, err, "still-processing must surface as an error so the queue retries")
	assert.Equal(t, 1, f.gateway.queries)
}

func TestPollStatus_AppliesOutcome(t *testing.T) {
	f := newFixture()
	f.initiate(t)
	outcome := successOutcome()
	f.gateway.outcome = &outcome

	require.NoError(t, f.coordinator.PollStatus(context.Background(), "chk-1"))
	stored := f.payments.get("chk-1")
	assert.Equal(t, models.PaymentStatusSuccessful, stored.Status)
	require.NotNil(t, stored.SettledAt)
}

func TestPollStatus_TerminalSettledIsNoOp(t *testing.T) {
	f := newFixture()
	f.initiate(t)
	require.NoError(t, f.coordinator.Reconcile(context.Background(), successOutcome()))

	require.NoError(t, f.coordinator.PollStatus(context.Background(), "chk-1"))
	assert.Zero(t, f.gateway.queries, "a settled payment needs no gateway query")
	assert.Equal(t, []string{"bk-1"}, f.settler.confirmed)
}

func TestReconcile_ExpiredBookingFlaggedNotConfirmed(t *testing.T) {
	f := newFixture()
	f.initiate(t)

	// The hold expired before the money arrived; the lifecycle manager
	// refuses the transition.
	f.settler.confirmErr = booking.NewError(booking.CodeInvalidTransition, "booking bk-1 is expired and cannot be confirmed")

	require.NoError(t, f.coordinator.Reconcile(context.Background(), successOutcome()))

	stored := f.payments.get("chk-1")
	assert.Equal(t, models.PaymentStatusSuccessful, stored.Status, "the money was received; only settlement is blocked")
	assert.True(t, stored.AnomalyFlag)
	assert.Nil(t, stored.SettledAt)
	assert.Empty(t, f.ledger.credited, "no commission for an unconfirmable booking")
	assert.Contains(t, f.notifier.events, models.EventPaymentAnomaly)

	// The sweep leaves flagged payments to manual review.
	require.NoError(t, f.coordinator.RetrySettlement(context.Background(), time.Now().Add(time.Minute)))
	assert.Empty(t, f.settler.confirmed)
	stored = f.payments.get("chk-1")
	assert.Nil(t, stored.SettledAt)
}

func TestRetrySettlement_FinishesInterruptedSettlement(t *testing.T) {
	f := newFixture()
	f.initiate(t)

	// Settlement dies between booking confirmation and the settled stamp.
	f.settler.confirmErr = errors.New("db down")
	err := f.coordinator.Reconcile(context.Background(), successOutcome())
	assert.Error(t, err)
	stored := f.payments.get("chk-1")
	assert.Equal(t, models.PaymentStatusSuccessful, stored.Status)
	assert.Nil(t, stored.SettledAt)

	f.settler.confirmErr = nil
	require.NoError(t, f.coordinator.RetrySettlement(context.Background(), time.Now().Add(time.Minute)))

	stored = f.payments.get("chk-1")
	require.NotNil(t, stored.SettledAt)
	assert.Equal(t, []string{"bk-1"}, f.settler.confirmed)
	assert.Equal(t, 1, f.ledger.credited["bk-1"])
}
