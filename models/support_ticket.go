package models

import "time"

const (
	TicketCategoryPayment      = "payment"
	TicketCategoryEvent        = "event"
	TicketCategoryRegistration = "registration"

	TicketStatusOpen     = "open"
	TicketStatusResolved = "resolved"
)

type SupportTicket struct {
	ID          int       `json:"id"`
	TexusID     string    `json:"texus_id"`
	Category    string    `json:"category"`
	IssueType   string    `json:"issue_type,omitempty"`
	EventID     int       `json:"event_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ProofURL    string    `json:"proof_url,omitempty"`
	Status      string    `json:"status"`
	AdminNotes  string    `json:"admin_notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
