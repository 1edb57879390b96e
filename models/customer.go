package models

import "time"

// Customer is the minimal view of a marketplace customer the booking core
// needs: referral attribution and a push target. Account management lives
// elsewhere.
type Customer struct {
	ID         string    `bson:"id" json:"id"`
	Name       string    `bson:"name,omitempty" json:"name,omitempty"`
	Phone      string    `bson:"phone" json:"phone"`
	ReferredBy string    `bson:"referred_by,omitempty" json:"referred_by,omitempty"` // referrer's customer id, empty when not referred
	FCMToken   string    `bson:"fcm_token,omitempty" json:"-"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
