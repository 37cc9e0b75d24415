// Package realtime pushes table change notifications to browser clients
// over websockets. All changes enter through a single ordered channel and
// are fanned out by one goroutine, so two updates to the same row can never
// be delivered to a client in a different order than they were published.
package realtime

import (
	"encoding/json"
	"log"
)

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"

	TableEvents        = "events"
	TableRegistrations = "registrations"
	TableMusicalNight  = "musical_night"
)

// Change is one committed row mutation, as sent to subscribers.
type Change struct {
	Table   string      `json:"table"`
	Action  string      `json:"action"`
	EventID int         `json:"event_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Subscription scopes what a client receives: one table, optionally one
// event id within it. EventID 0 means the whole table.
type Subscription struct {
	Table   string `json:"table"`
	EventID int    `json:"event_id,omitempty"`
}

func (s Subscription) matches(c Change) bool {
	if s.Table != c.Table {
		return false
	}
	if s.EventID != 0 && c.EventID != 0 && s.EventID != c.EventID {
		return false
	}
	return true
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	changes    chan Change
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		changes:    make(chan Change, 256),
	}
}

// Publish queues a committed change for delivery. Never blocks the caller:
// if the hub is saturated the change is dropped with a log line, the same
// way a dropped transport delivery would be.
func (h *Hub) Publish(change Change) {
	select {
	case h.changes <- change:
	default:
		log.Printf("realtime: change buffer full, dropping %s %s", change.Action, change.Table)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case change := <-h.changes:
			h.broadcast(change)
		}
	}
}

func (h *Hub) broadcast(change Change) {
	msg, err := json.Marshal(change)
	if err != nil {
		log.Printf("realtime: marshal change: %v", err)
		return
	}
	for client := range h.clients {
		if !client.wants(change) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// slow consumer, cut it loose
			delete(h.clients, client)
			close(client.send)
		}
	}
}
