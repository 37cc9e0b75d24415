package controllers

import (
	"testing"

	"texus-backend/models"
)

func TestComputeAmount(t *testing.T) {
	tests := []struct {
		name     string
		fee      int
		referral string
		want     int
	}{
		{"no referral", 700, "", 700},
		{"with referral", 700, "REF2026", 650},
		{"blank referral is ignored", 700, "   ", 700},
		{"discount never goes negative", 30, "REF2026", 0},
		{"free event stays free", 0, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeAmount(tt.fee, tt.referral); got != tt.want {
				t.Errorf("ComputeAmount(%d, %q) = %d, want %d", tt.fee, tt.referral, got, tt.want)
			}
		})
	}
}

func TestValidateTeam(t *testing.T) {
	event := models.Event{MinParticipants: 3, MaxParticipants: 3}

	tests := []struct {
		name      string
		event     models.Event
		team      []string
		initiator string
		wantMsg   string
		wantOK    bool
	}{
		{
			name:      "one short of minimum",
			event:     event,
			team:      []string{"TXS00001", "TXS00002"},
			initiator: "TXS00001",
			wantMsg:   "Add 1 more member to register",
		},
		{
			name:      "two short of minimum",
			event:     event,
			team:      []string{"TXS00001"},
			initiator: "TXS00001",
			wantMsg:   "Add 2 more members to register",
		},
		{
			name:      "exactly at bounds",
			event:     event,
			team:      []string{"TXS00001", "TXS00002", "TXS00003"},
			initiator: "TXS00001",
			wantOK:    true,
		},
		{
			name:      "over maximum",
			event:     models.Event{MinParticipants: 1, MaxParticipants: 2},
			team:      []string{"TXS00001", "TXS00002", "TXS00003"},
			initiator: "TXS00001",
			wantMsg:   "A team can have at most 2 members",
		},
		{
			name:      "initiator missing",
			event:     models.Event{MinParticipants: 1, MaxParticipants: 3},
			team:      []string{"TXS00002"},
			initiator: "TXS00001",
			wantMsg:   "You must be part of your own team",
		},
		{
			name:      "duplicate member",
			event:     models.Event{MinParticipants: 1, MaxParticipants: 3},
			team:      []string{"TXS00001", "TXS00001"},
			initiator: "TXS00001",
			wantMsg:   "Duplicate team member: TXS00001",
		},
		{
			name:      "solo event",
			event:     models.Event{MinParticipants: 1, MaxParticipants: 1},
			team:      []string{"TXS00001"},
			initiator: "TXS00001",
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := ValidateTeam(tt.event, tt.team, tt.initiator)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (msg %q)", ok, tt.wantOK, msg)
			}
			if !ok && msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestCapacityMessage(t *testing.T) {
	full := models.Event{Slots: 2}
	full.SetRegistered(2)
	if msg, ok := CapacityMessage(full); ok || msg != "Event Full" {
		t.Errorf("full event: got (%q, %v), want (Event Full, false)", msg, ok)
	}

	open := models.Event{Slots: 2}
	open.SetRegistered(1)
	if _, ok := CapacityMessage(open); !ok {
		t.Error("event with a free slot should accept registrations")
	}

	unlimited := models.Event{Slots: 0}
	unlimited.SetRegistered(500)
	if _, ok := CapacityMessage(unlimited); !ok {
		t.Error("zero slots means no cap")
	}

	overbooked := models.Event{Slots: 2}
	overbooked.SetRegistered(3)
	if msg, ok := CapacityMessage(overbooked); ok || msg != "Event Full" {
		t.Errorf("overbooked event: got (%q, %v), want (Event Full, false)", msg, ok)
	}
}
