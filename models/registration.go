package models

import "time"

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

type Registration struct {
	ID            int       `json:"id"`
	EventID       int       `json:"event_id"`
	Team          []string  `json:"team"`
	Amount        int       `json:"amount"`
	ReferralCode  string    `json:"referral_code,omitempty"`
	OrderID       string    `json:"order_id"`
	PaymentStatus string    `json:"payment_status"`
	Attended      bool      `json:"attended"`
	CreatedAt     time.Time `json:"created_at"`

	EventName  string `json:"event_name,omitempty"`
	EventVenue string `json:"event_venue,omitempty"`
	EventDate  string `json:"event_date,omitempty"`
}
