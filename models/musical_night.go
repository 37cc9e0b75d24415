package models

import "time"

type MusicalNightRegistration struct {
	ID               int       `json:"id"`
	TexusID          string    `json:"texus_id"`
	Phase            int       `json:"phase"`
	OrderID          string    `json:"order_id"`
	Amount           int       `json:"amount"`
	PaymentStatus    string    `json:"payment_status"`
	MerchCollected   bool      `json:"merch_collected"`
	TicketCollected  bool      `json:"ticket_collected"`
	CreatedAt        time.Time `json:"created_at"`
	ParticipantName  string    `json:"participant_name,omitempty"`
	ParticipantEmail string    `json:"participant_email,omitempty"`
}
