package models

// TicketPayload is the QR wire format scanned at the venue. It is XOR
// obfuscated with the event id and base64url-encoded before rendering;
// this deters casual tampering by scanning staff, nothing more.
type TicketPayload struct {
	TexusID       string `json:"texus_id"`
	Name          string `json:"name"`
	EventID       int    `json:"event_id"`
	PaymentStatus string `json:"payment_status"`
	Attended      bool   `json:"attended"`
}
