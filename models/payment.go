package models

import "time"

// Payment statuses. Successful and Failed are terminal and each reachable once.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusSuccessful = "successful"
	PaymentStatusFailed     = "failed"
)

// Payment is one attempt to pay for a booking (or offer) through the
// mobile-money gateway. MerchantRequestID and CheckoutRequestID are the
// gateway correlation ids; UniqueCode is our own 8-character display and
// idempotency key.
type Payment struct {
	ID                string     `bson:"id" json:"id"`
	BookingID         string     `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	OfferID           string     `bson:"offer_id,omitempty" json:"offer_id,omitempty"`
	CustomerID        string     `bson:"customer_id" json:"customer_id"`
	PhoneNumber       string     `bson:"phone_number" json:"phone_number"`
	Amount            float64    `bson:"amount" json:"amount"`
	AccessFee         float64    `bson:"access_fee" json:"access_fee"`
	Status            string     `bson:"status" json:"status"`
	MerchantRequestID string     `bson:"merchant_request_id" json:"merchant_request_id"`
	CheckoutRequestID string     `bson:"checkout_request_id" json:"checkout_request_id"`
	UniqueCode        string     `bson:"unique_code" json:"unique_code"`
	ResultDesc        string     `bson:"result_desc,omitempty" json:"result_desc,omitempty"`
	AnomalyFlag       bool       `bson:"anomaly_flag,omitempty" json:"anomaly_flag,omitempty"`
	SettledAt         *time.Time `bson:"settled_at,omitempty" json:"settled_at,omitempty"`
	PaymentDate       *time.Time `bson:"payment_date,omitempty" json:"payment_date,omitempty"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
}

// Terminal reports whether the payment already reached a final outcome.
func (p Payment) Terminal() bool {
	return p.Status == PaymentStatusSuccessful || p.Status == PaymentStatusFailed
}

// PaymentOutcome is a gateway callback or status-poll result fed into reconciliation.
type PaymentOutcome struct {
	CheckoutRequestID string     `json:"checkout_request_id"`
	Success           bool       `json:"success"`
	ResultDesc        string     `json:"result_desc"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
}
