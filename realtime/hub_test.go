package realtime

import (
	"encoding/json"
	"testing"
)

func TestSubscriptionMatches(t *testing.T) {
	tests := []struct {
		name   string
		sub    Subscription
		change Change
		want   bool
	}{
		{"same table", Subscription{Table: TableRegistrations}, Change{Table: TableRegistrations}, true},
		{"different table", Subscription{Table: TableEvents}, Change{Table: TableRegistrations}, false},
		{"scoped, matching event", Subscription{Table: TableRegistrations, EventID: 7}, Change{Table: TableRegistrations, EventID: 7}, true},
		{"scoped, other event", Subscription{Table: TableRegistrations, EventID: 7}, Change{Table: TableRegistrations, EventID: 8}, false},
		{"scoped sub, unscoped change", Subscription{Table: TableRegistrations, EventID: 7}, Change{Table: TableRegistrations}, true},
		{"unscoped sub sees everything", Subscription{Table: TableRegistrations}, Change{Table: TableRegistrations, EventID: 8}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.matches(tt.change); got != tt.want {
				t.Errorf("matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestClient(subs ...Subscription) *Client {
	return &Client{send: make(chan []byte, sendBuffer), subs: subs}
}

func TestBroadcastFanOut(t *testing.T) {
	hub := NewHub()

	scoped := newTestClient(Subscription{Table: TableRegistrations, EventID: 7})
	other := newTestClient(Subscription{Table: TableRegistrations, EventID: 8})
	events := newTestClient(Subscription{Table: TableEvents})
	hub.clients[scoped] = true
	hub.clients[other] = true
	hub.clients[events] = true

	hub.broadcast(Change{Table: TableRegistrations, Action: ActionInsert, EventID: 7})

	select {
	case msg := <-scoped.send:
		var got Change
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Table != TableRegistrations || got.Action != ActionInsert || got.EventID != 7 {
			t.Errorf("unexpected change delivered: %+v", got)
		}
	default:
		t.Fatal("scoped subscriber received nothing")
	}

	if len(other.send) != 0 {
		t.Error("subscriber scoped to another event should receive nothing")
	}
	if len(events.send) != 0 {
		t.Error("subscriber on another table should receive nothing")
	}
}

func TestBroadcastPreservesOrder(t *testing.T) {
	hub := NewHub()
	client := newTestClient(Subscription{Table: TableRegistrations})
	hub.clients[client] = true

	for i := 1; i <= 3; i++ {
		hub.broadcast(Change{Table: TableRegistrations, Action: ActionUpdate, EventID: i})
	}

	for i := 1; i <= 3; i++ {
		var got Change
		if err := json.Unmarshal(<-client.send, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.EventID != i {
			t.Fatalf("delivery out of order: got event %d at position %d", got.EventID, i)
		}
	}
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{send: make(chan []byte), subs: []Subscription{{Table: TableRegistrations}}}
	hub.clients[slow] = true

	hub.broadcast(Change{Table: TableRegistrations, Action: ActionInsert})

	if _, ok := hub.clients[slow]; ok {
		t.Error("client with a full send buffer should be removed")
	}
	if _, open := <-slow.send; open {
		t.Error("dropped client's send channel should be closed")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	// no consumer running; fill past the buffer
	for i := 0; i < 300; i++ {
		hub.Publish(Change{Table: TableEvents, Action: ActionUpdate})
	}
}
