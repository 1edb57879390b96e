package models

// Notification event names emitted by the booking core. Delivery mechanics
// belong to the notification service; the core only names the event.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
	EventPaymentFailed    = "payment.failed"
	EventPaymentAnomaly   = "payment.anomaly"
	EventCommissionEarned = "commission.earned"
)

// NotificationPayload is the generic envelope handed to Notify.
type NotificationPayload struct {
	CustomerID string            `json:"customer_id,omitempty"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
}
