package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soko/models"
)

type memCatalogRepo struct {
	services map[string]models.Service
}

func (r *memCatalogRepo) GetServiceByID(_ context.Context, id string) (*models.Service, error) {
	svc, ok := r.services[id]
	if !ok {
		return nil, errors.New("service not found")
	}
	return &svc, nil
}

func (r *memCatalogRepo) ListServicesByStore(_ context.Context, storeID string) ([]models.Service, error) {
	var out []models.Service
	for _, svc := range r.services {
		if svc.StoreID == storeID {
			out = append(out, svc)
		}
	}
	return out, nil
}

type recordingInitiator struct {
	bookingID string
	phone     string
	amount    float64
	accessFee float64
}

func (i *recordingInitiator) Initiate(_ context.Context, b *models.Booking, phone string, amount, accessFee float64) (*models.Payment, error) {
	i.bookingID = b.ID
	i.phone = phone
	i.amount = amount
	i.accessFee = accessFee
	return &models.Payment{ID: "pay-1", BookingID: b.ID, Status: models.PaymentStatusPending}, nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event string, _ models.NotificationPayload) error {
	n.events = append(n.events, event)
	return nil
}

func newLifecycleFixture(svc models.Service) (*DefaultBookingService, *memBookingRepo, *recordingInitiator, *recordingNotifier) {
	repo := newMemBookingRepo()
	initiator := &recordingInitiator{}
	notifier := &recordingNotifier{}
	s := &DefaultBookingService{
		CatalogRepo: &memCatalogRepo{services: map[string]models.Service{svc.ID: svc}},
		BookingRepo: repo,
		Engine:      NewReservationEngine(repo),
		Payments:    initiator,
		Notifier:    notifier,
	}
	return s, repo, initiator, notifier
}

func pendingBooking(svc models.Service, customerID string, start time.Time) models.Booking {
	return models.Booking{
		ID:            "bk-1",
		ServiceID:     svc.ID,
		StoreID:       svc.StoreID,
		CustomerID:    customerID,
		ScheduledAt:   start,
		OccupiedUntil: start.Add(time.Duration(svc.OccupiedMinutes()) * time.Minute),
		Amount:        svc.Price,
		Status:        models.BookingStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestConfirmPayment_DelegatesWithServiceAmounts(t *testing.T) {
	svc := allDayService(2)
	svc.Price = 2500
	svc.AccessFee = 150
	s, repo, initiator, _ := newLifecycleFixture(svc)
	repo.put(pendingBooking(svc, "cust-1", nextGridSlot()))

	p, err := s.ConfirmPayment(context.Background(), "bk-1", "cust-1", "254712345678")
	require.NoError(t, err)
	assert.Equal(t, "bk-1", p.BookingID)
	assert.Equal(t, "254712345678", initiator.phone)
	assert.Equal(t, 2500.0, initiator.amount)
	assert.Equal(t, 150.0, initiator.accessFee)
}

func TestConfirmPayment_WrongOwnerRejected(t *testing.T) {
	svc := allDayService(2)
	s, repo, _, _ := newLifecycleFixture(svc)
	repo.put(pendingBooking(svc, "cust-1", nextGridSlot()))

	_, err := s.ConfirmPayment(context.Background(), "bk-1", "cust-2", "254712345678")
	assert.True(t, HasCode(err, CodeNotAllowed))
}

func TestConfirmPayment_NonPendingRejected(t *testing.T) {
	svc := allDayService(2)
	s, repo, _, _ := newLifecycleFixture(svc)
	b := pendingBooking(svc, "cust-1", nextGridSlot())
	b.Status = models.BookingStatusConfirmed
	repo.put(b)

	_, err := s.ConfirmPayment(context.Background(), "bk-1", "cust-1", "254712345678")
	assert.True(t, HasCode(err, CodeInvalidTransition))
}

func TestCancel_PendingBooking(t *testing.T) {
	svc := allDayService(2)
	s, repo, _, notifier := newLifecycleFixture(svc)
	repo.put(pendingBooking(svc, "cust-1", nextGridSlot()))

	b, err := s.Cancel(context.Background(), "bk-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, b.Status)
	assert.Contains(t, notifier.events, models.EventBookingCancelled)
}

func TestCancel_ConfirmedInsideWindowRejected(t *testing.T) {
	svc := allDayService(2)
	svc.MinCancellationHours = 72
	svc.CancellationPolicy = models.CancellationPolicyStandard
	s, repo, _, _ := newLifecycleFixture(svc)

	b := pendingBooking(svc, "cust-1", nextGridSlot()) // 48h out
	b.Status = models.BookingStatusConfirmed
	repo.put(b)

	_, err := s.Cancel(context.Background(), "bk-1", "cust-1")
	assert.True(t, HasCode(err, CodeCancellationWindowClosed))
}

func TestCancel_FlexiblePolicyIgnoresWindow(t *testing.T) {
	svc := allDayService(2)
	svc.MinCancellationHours = 72
	svc.CancellationPolicy = models.CancellationPolicyFlexible
	s, repo, _, _ := newLifecycleFixture(svc)

	b := pendingBooking(svc, "cust-1", nextGridSlot())
	b.Status = models.BookingStatusConfirmed
	repo.put(b)

	got, err := s.Cancel(context.Background(), "bk-1", "cust-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, got.Status)
}

func TestCancel_TerminalBookingRejected(t *testing.T) {
	svc := allDayService(2)
	s, repo, _, _ := newLifecycleFixture(svc)
	b := pendingBooking(svc, "cust-1", nextGridSlot())
	b.Status = models.BookingStatusCheckedIn
	repo.put(b)

	_, err := s.Cancel(context.Background(), "bk-1", "cust-1")
	assert.True(t, HasCode(err, CodeInvalidTransition))
}

func TestCheckIn_ConfirmedOnly(t *testing.T) {
	svc := allDayService(2)
	s, repo, _, _ := newLifecycleFixture(svc)
	b := pendingBooking(svc, "cust-1", nextGridSlot())
	b.Status = models.BookingStatusConfirmed
	repo.put(b)

	got, err := s.CheckIn(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCheckedIn, got.Status)
	require.NotNil(t, got.CheckedInAt)

	// Checking in twice is a state error, not a silent success.
	_, err = s.CheckIn(context.Background(), "bk-1")
	assert.True(t, HasCode(err, CodeInvalidTransition))
}

func TestCheckIn_PendingRejected(t *testing.T) {
	svc := allDayService(2)
	s, repo, _, _ := newLifecycleFixture(svc)
	repo.put(pendingBooking(svc, "cust-1", nextGridSlot()))

	_, err := s.CheckIn(context.Background(), "bk-1")
	assert.True(t, HasCode(err, CodeInvalidTransition))
}

func TestConfirmBooking_Transitions(t *testing.T) {
	svc := allDayService(2)
	s, repo, _, _ := newLifecycleFixture(svc)

	// pending -> confirmed
	repo.put(pendingBooking(svc, "cust-1", nextGridSlot()))
	require.NoError(t, s.ConfirmBooking(context.Background(), "bk-1"))
	got, _ := repo.GetBookingByID(context.Background(), "bk-1")
	assert.Equal(t, models.BookingStatusConfirmed, got.Status)

	// confirming again is a no-op
	require.NoError(t, s.ConfirmBooking(context.Background(), "bk-1"))

	// an expired hold is terminal; a late payment must not revive it
	expired := pendingBooking(svc, "cust-1", nextGridSlot())
	expired.ID = "bk-2"
	expired.Status = models.BookingStatusExpired
	repo.put(expired)
	err := s.ConfirmBooking(context.Background(), "bk-2")
	assert.True(t, HasCode(err, CodeInvalidTransition))
	got, _ = repo.GetBookingByID(context.Background(), "bk-2")
	assert.Equal(t, models.BookingStatusExpired, got.Status)

	// a cancelled booking stays cancelled
	cancelled := pendingBooking(svc, "cust-1", nextGridSlot())
	cancelled.ID = "bk-3"
	cancelled.Status = models.BookingStatusCancelled
	repo.put(cancelled)
	err = s.ConfirmBooking(context.Background(), "bk-3")
	assert.True(t, HasCode(err, CodeInvalidTransition))
}

func TestConfirmBooking_ExpiredHoldCannotOverbookSlot(t *testing.T) {
	svc := allDayService(1)
	s, repo, _, _ := newLifecycleFixture(svc)
	slot := nextGridSlot()

	// Customer A's hold expired and released the slot's only unit of capacity.
	expired := pendingBooking(svc, "cust-a", slot)
	expired.ID = "bk-a"
	expired.Status = models.BookingStatusExpired
	repo.put(expired)

	// Customer B reserved the freed slot and paid.
	b, err := s.Reserve(context.Background(), svc.ID, "cust-b", slot)
	require.NoError(t, err)
	require.NoError(t, s.ConfirmBooking(context.Background(), b.ID))

	// A's late payment arrives. Confirming it would exceed capacity.
	err = s.ConfirmBooking(context.Background(), "bk-a")
	assert.True(t, HasCode(err, CodeInvalidTransition))

	count, err := repo.CountActiveOverlapping(context.Background(), svc.ID, slot, slot.Add(time.Hour), time.Now().Add(-HoldGracePeriod))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the capacity-1 slot must hold exactly one active booking")
}

func TestReleaseBooking(t *testing.T) {
	svc := allDayService(2)
	s, repo, _, _ := newLifecycleFixture(svc)

	repo.put(pendingBooking(svc, "cust-1", nextGridSlot()))
	require.NoError(t, s.ReleaseBooking(context.Background(), "bk-1"))
	got, _ := repo.GetBookingByID(context.Background(), "bk-1")
	assert.Equal(t, models.BookingStatusCancelled, got.Status)

	// Releasing a confirmed booking leaves it untouched.
	confirmed := pendingBooking(svc, "cust-1", nextGridSlot())
	confirmed.ID = "bk-2"
	confirmed.Status = models.BookingStatusConfirmed
	repo.put(confirmed)
	require.NoError(t, s.ReleaseBooking(context.Background(), "bk-2"))
	got, _ = repo.GetBookingByID(context.Background(), "bk-2")
	assert.Equal(t, models.BookingStatusConfirmed, got.Status)
}
