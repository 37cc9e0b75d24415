package controllers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"texus-backend/models"
	"texus-backend/utils"

	"github.com/gorilla/mux"
)

type EventController struct{}

const eventColumns = `id, name, description, rules, venue, venue_name, location, start_date,
	fee, min_participants, max_participants, slots, prizes, department, banner_url, event_type, site_url`

func scanEventRow(scanner interface{ Scan(...interface{}) error }) (models.Event, error) {
	var row models.EventRow
	err := scanner.Scan(&row.ID, &row.Name, &row.Description, &row.Rules, &row.Venue,
		&row.VenueName, &row.Location, &row.StartDate, &row.Fee, &row.MinParticipants,
		&row.MaxParticipants, &row.Slots, &row.Prizes, &row.Department, &row.BannerURL,
		&row.EventType, &row.SiteURL)
	if err != nil {
		return models.Event{}, err
	}
	return row.Normalize(), nil
}

func (ec *EventController) GetEvents(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := "SELECT " + eventColumns + " FROM events"
		args := []interface{}{}
		if eventType := r.URL.Query().Get("type"); eventType != "" {
			query += " WHERE event_type = ?"
			args = append(args, eventType)
		}
		query += " ORDER BY start_date"

		rows, err := db.Query(query, args...)
		if err != nil {
			log.Printf("Error fetching events: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to fetch events"})
			return
		}
		defer rows.Close()

		events := []models.Event{}
		for rows.Next() {
			event, err := scanEventRow(rows)
			if err != nil {
				log.Printf("Error scanning event: %v", err)
				continue
			}
			events = append(events, event)
		}

		// one pass for the counters instead of a count query per event
		counts, err := registrationCounts(db)
		if err != nil {
			log.Printf("Error fetching registration counts: %v", err)
		}
		for i := range events {
			events[i].SetRegistered(counts[events[i].ID])
		}

		utils.ResponseJSON(w, events)
	}
}

func (ec *EventController) GetEvent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil || eventID <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid event ID"})
			return
		}

		event, err := GetEventByID(db, eventID)
		if err == sql.ErrNoRows {
			utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "Event not found"})
			return
		}
		if err != nil {
			log.Printf("Error fetching event %d: %v", eventID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to fetch event"})
			return
		}

		utils.ResponseJSON(w, event)
	}
}

func GetEventByID(db *sql.DB, eventID int) (models.Event, error) {
	event, err := scanEventRow(db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ?", eventID))
	if err != nil {
		return event, err
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM registrations WHERE event_id = ?", eventID).Scan(&count); err != nil {
		return event, err
	}
	event.SetRegistered(count)
	return event, nil
}

func registrationCounts(db *sql.DB) (map[int]int, error) {
	counts := map[int]int{}
	rows, err := db.Query("SELECT event_id, COUNT(*) FROM registrations GROUP BY event_id")
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var eventID, count int
		if err := rows.Scan(&eventID, &count); err != nil {
			return counts, err
		}
		counts[eventID] = count
	}
	return counts, rows.Err()
}
