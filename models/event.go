package models

import (
	"database/sql"
	"encoding/json"
	"strings"
)

type Event struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Rules           []string `json:"rules"`
	Venue           string   `json:"venue"`
	StartDate       string   `json:"start_date"`
	Fee             int      `json:"fee"`
	MinParticipants int      `json:"min_participants"`
	MaxParticipants int      `json:"max_participants"`
	Slots           int      `json:"slots"`
	Prizes          []string `json:"prizes"`
	Department      string   `json:"department,omitempty"`
	BannerURL       string   `json:"banner_url,omitempty"`
	EventType       string   `json:"event_type"`
	SiteURL         string   `json:"site_url,omitempty"`

	Registered int `json:"registered"`
	SlotsLeft  int `json:"slots_left"`
}

// EventRow is the raw scan target for the events table. Older rows written
// by the admin tool keep the venue under venue_name or location and store
// rules/prizes either as a JSON array or as newline-separated text, so the
// row is normalized into Event before anything else touches it.
type EventRow struct {
	ID              int
	Name            string
	Description     sql.NullString
	Rules           sql.NullString
	Venue           sql.NullString
	VenueName       sql.NullString
	Location        sql.NullString
	StartDate       sql.NullString
	Fee             int
	MinParticipants int
	MaxParticipants int
	Slots           int
	Prizes          sql.NullString
	Department      sql.NullString
	BannerURL       sql.NullString
	EventType       sql.NullString
	SiteURL         sql.NullString
}

func (r EventRow) Normalize() Event {
	e := Event{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description.String,
		Rules:           parseTextList(r.Rules.String),
		Venue:           firstNonEmpty(r.Venue.String, r.VenueName.String, r.Location.String),
		StartDate:       r.StartDate.String,
		Fee:             r.Fee,
		MinParticipants: r.MinParticipants,
		MaxParticipants: r.MaxParticipants,
		Slots:           r.Slots,
		Prizes:          parseTextList(r.Prizes.String),
		Department:      r.Department.String,
		BannerURL:       r.BannerURL.String,
		EventType:       r.EventType.String,
		SiteURL:         r.SiteURL.String,
	}
	if e.MinParticipants < 1 {
		e.MinParticipants = 1
	}
	if e.MaxParticipants < e.MinParticipants {
		e.MaxParticipants = e.MinParticipants
	}
	return e
}

// SetRegistered fills the derived counters. slots_left never goes negative
// even when the stored registrations overshoot the slot count.
func (e *Event) SetRegistered(count int) {
	e.Registered = count
	left := e.Slots - count
	if left < 0 {
		left = 0
	}
	e.SlotsLeft = left
}

func (e Event) IsFull() bool {
	return e.Slots > 0 && e.Registered >= e.Slots
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseTextList accepts either a JSON string array or plain newline-separated
// text and returns a clean slice either way.
func parseTextList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			out := make([]string, 0, len(list))
			for _, item := range list {
				if s := strings.TrimSpace(item); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}
