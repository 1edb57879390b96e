package models

import "time"

// ReferralEarning statuses. The payout process moves pending earnings to
// confirmed/paid or cancelled; this core only ever creates them pending.
const (
	EarningStatusPending   = "pending"
	EarningStatusConfirmed = "confirmed"
	EarningStatusPaid      = "paid"
	EarningStatusCancelled = "cancelled"
)

// ReferralEarning is a commission record attributed to a referrer for one
// successfully settled booking by a customer they invited. BookingID carries
// a unique index: at most one earning can ever exist per booking.
type ReferralEarning struct {
	ID             string     `bson:"id" json:"id"`
	ReferrerID     string     `bson:"referrer_id" json:"referrer_id"`
	RefereeID      string     `bson:"referee_id" json:"referee_id"`
	BookingID      string     `bson:"booking_id" json:"booking_id"`
	Amount         float64    `bson:"amount" json:"amount"`
	AccessFee      float64    `bson:"access_fee" json:"access_fee"`
	CommissionRate float64    `bson:"commission_rate" json:"commission_rate"`
	Status         string     `bson:"status" json:"status"`
	PaidAt         *time.Time `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
}
