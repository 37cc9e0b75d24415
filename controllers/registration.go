package controllers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"texus-backend/models"
	"texus-backend/realtime"
	"texus-backend/utils"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type RegistrationController struct {
	Hub *realtime.Hub
}

const referralDiscount = 50

// ComputeAmount applies the flat referral discount to the event fee. The
// code itself is not validated, matching the product behavior.
func ComputeAmount(fee int, referralCode string) int {
	if strings.TrimSpace(referralCode) != "" {
		fee -= referralDiscount
		if fee < 0 {
			fee = 0
		}
	}
	return fee
}

// ValidateTeam runs the membership checks that do not need the database:
// initiator present, no duplicate members, size within the event bounds.
// Returns a user-facing message when the team is not submittable.
func ValidateTeam(event models.Event, team []string, initiator string) (string, bool) {
	seen := map[string]bool{}
	found := false
	for _, id := range team {
		if seen[id] {
			return "Duplicate team member: " + id, false
		}
		seen[id] = true
		if id == initiator {
			found = true
		}
	}
	if !found {
		return "You must be part of your own team", false
	}
	if len(team) < event.MinParticipants {
		missing := event.MinParticipants - len(team)
		plural := ""
		if missing > 1 {
			plural = "s"
		}
		return fmt.Sprintf("Add %d more member%s to register", missing, plural), false
	}
	if len(team) > event.MaxParticipants {
		return fmt.Sprintf("A team can have at most %d members", event.MaxParticipants), false
	}
	return "", true
}

// CapacityMessage is the gate shown before any write is attempted.
func CapacityMessage(event models.Event) (string, bool) {
	if event.IsFull() {
		return "Event Full", false
	}
	return "", true
}

// RegisterTeam creates a pending registration. The event row is locked for
// the duration of the transaction so the capacity check and the insert are
// atomic: two submissions racing for the last slot serialize, and the
// second one fails with Event Full.
func (rc *RegistrationController) RegisterTeam(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		user, err := GetUserByID(db, userID)
		if err != nil {
			log.Printf("Error fetching user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		var body struct {
			EventID      int      `json:"event_id"`
			Team         []string `json:"team"`
			ReferralCode string   `json:"referral_code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid body"})
			return
		}
		defer r.Body.Close()

		if body.EventID <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid event ID"})
			return
		}

		// The initiating user is always a member
		team := body.Team
		onTeam := false
		for _, id := range team {
			if id == user.TexusID {
				onTeam = true
				break
			}
		}
		if !onTeam {
			team = append([]string{user.TexusID}, team...)
		}

		tx, err := db.Begin()
		if err != nil {
			log.Printf("Error starting transaction: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
			return
		}
		defer tx.Rollback()

		// Lock the event row; concurrent registrations queue up here
		var eventRow models.EventRow
		err = tx.QueryRow(`SELECT id, name, fee, min_participants, max_participants, slots
			FROM events WHERE id = ? FOR UPDATE`, body.EventID).
			Scan(&eventRow.ID, &eventRow.Name, &eventRow.Fee, &eventRow.MinParticipants,
				&eventRow.MaxParticipants, &eventRow.Slots)
		if err == sql.ErrNoRows {
			utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "Event not found"})
			return
		}
		if err != nil {
			log.Printf("Error locking event %d: %v", body.EventID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Error checking event"})
			return
		}
		event := eventRow.Normalize()

		if msg, ok := ValidateTeam(event, team, user.TexusID); !ok {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: msg})
			return
		}

		// Every member must exist and must not already be registered
		for _, texusID := range team {
			var exists int
			if err := tx.QueryRow("SELECT COUNT(*) FROM users WHERE texus_id = ?", texusID).Scan(&exists); err != nil {
				log.Printf("Error checking member %s: %v", texusID, err)
				utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
				return
			}
			if exists == 0 {
				utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Unknown participant: " + texusID})
				return
			}

			var registered int
			err = tx.QueryRow(`SELECT COUNT(*) FROM registrations
				WHERE event_id = ? AND JSON_CONTAINS(team, JSON_QUOTE(?))`,
				body.EventID, texusID).Scan(&registered)
			if err != nil {
				log.Printf("Error checking duplicate registration for %s: %v", texusID, err)
				utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
				return
			}
			if registered > 0 {
				utils.RespondWithError(w, http.StatusConflict,
					models.Error{Message: texusID + " is already registered for this event"})
				return
			}
		}

		var count int
		if err := tx.QueryRow("SELECT COUNT(*) FROM registrations WHERE event_id = ?", body.EventID).Scan(&count); err != nil {
			log.Printf("Error counting registrations: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
			return
		}
		event.SetRegistered(count)
		if msg, ok := CapacityMessage(event); !ok {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: msg})
			return
		}

		amount := ComputeAmount(event.Fee, body.ReferralCode)
		orderID := uuid.New().String()
		teamJSON, err := json.Marshal(team)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		result, err := tx.Exec(`INSERT INTO registrations (event_id, team, amount, referral_code, order_id, payment_status, attended)
			VALUES (?, ?, ?, ?, ?, ?, false)`,
			body.EventID, teamJSON, amount, body.ReferralCode, orderID, models.PaymentPending)
		if err != nil {
			log.Printf("Error inserting registration: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to register for event"})
			return
		}

		if err := tx.Commit(); err != nil {
			log.Printf("Error committing registration: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to complete registration"})
			return
		}

		registrationID, _ := result.LastInsertId()

		intent, err := utils.SignPaymentIntent(utils.PaymentIntent{
			UserID:       userID,
			EventID:      body.EventID,
			Team:         team,
			Amount:       amount,
			ReferralCode: body.ReferralCode,
			OrderID:      orderID,
		})
		if err != nil {
			log.Printf("Error signing payment intent: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to prepare payment"})
			return
		}

		if rc.Hub != nil {
			rc.Hub.Publish(realtime.Change{
				Table:   realtime.TableRegistrations,
				Action:  realtime.ActionInsert,
				EventID: body.EventID,
				Payload: map[string]interface{}{
					"registration_id": registrationID,
					"order_id":        orderID,
					"team":            team,
				},
			})
		}

		go utils.SendEmail(user.Email, "TEXUS registration received",
			fmt.Sprintf("Your team is registered for %s. Order %s, amount ₹%d. Complete the payment to confirm your slot.",
				event.Name, orderID, amount))

		utils.ResponseJSON(w, map[string]interface{}{
			"message":         "Registration created, proceed to payment",
			"registration_id": registrationID,
			"order_id":        orderID,
			"amount":          amount,
			"payment_intent":  intent,
		})
	}
}

// ReissueIntent signs a fresh payment intent for a pending registration.
// Intents expire after 15 minutes; without this a committed registration
// holding a slot would have no way back to the checkout.
func (rc *RegistrationController) ReissueIntent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		regID, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil || regID <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid registration ID"})
			return
		}

		user, err := GetUserByID(db, userID)
		if err != nil {
			log.Printf("Error fetching user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		var reg models.Registration
		var teamJSON []byte
		err = db.QueryRow(`SELECT id, event_id, team, amount, COALESCE(referral_code, ''), order_id, payment_status
			FROM registrations WHERE id = ?`, regID).
			Scan(&reg.ID, &reg.EventID, &teamJSON, &reg.Amount, &reg.ReferralCode, &reg.OrderID, &reg.PaymentStatus)
		if err == sql.ErrNoRows {
			utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "Registration not found"})
			return
		}
		if err != nil {
			log.Printf("Error fetching registration %d: %v", regID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}
		if err := json.Unmarshal(teamJSON, &reg.Team); err != nil {
			log.Printf("Error decoding team for registration %d: %v", regID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		member := false
		for _, id := range reg.Team {
			if id == user.TexusID {
				member = true
				break
			}
		}
		if !member {
			utils.RespondWithError(w, http.StatusForbidden, models.Error{Message: "This registration does not belong to you"})
			return
		}

		if reg.PaymentStatus != models.PaymentPending {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "This registration is not awaiting payment"})
			return
		}

		intent, err := utils.SignPaymentIntent(utils.PaymentIntent{
			UserID:       userID,
			EventID:      reg.EventID,
			Team:         reg.Team,
			Amount:       reg.Amount,
			ReferralCode: reg.ReferralCode,
			OrderID:      reg.OrderID,
		})
		if err != nil {
			log.Printf("Error signing payment intent: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to prepare payment"})
			return
		}

		utils.ResponseJSON(w, map[string]interface{}{
			"registration_id": reg.ID,
			"order_id":        reg.OrderID,
			"amount":          reg.Amount,
			"payment_intent":  intent,
		})
	}
}

// MyRegistrations lists every registration whose team contains the caller.
func (rc *RegistrationController) MyRegistrations(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		user, err := GetUserByID(db, userID)
		if err != nil {
			log.Printf("Error fetching user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		rows, err := db.Query(`SELECT r.id, r.event_id, r.team, r.amount, r.order_id, r.payment_status, r.attended, r.created_at,
				e.name, COALESCE(NULLIF(e.venue, ''), NULLIF(e.venue_name, ''), e.location, ''), COALESCE(e.start_date, '')
			FROM registrations r
			LEFT JOIN events e ON r.event_id = e.id
			WHERE JSON_CONTAINS(r.team, JSON_QUOTE(?))
			ORDER BY r.created_at DESC`, user.TexusID)
		if err != nil {
			log.Printf("Error fetching registrations for %s: %v", user.TexusID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to fetch registrations"})
			return
		}
		defer rows.Close()

		registrations := []models.Registration{}
		for rows.Next() {
			var reg models.Registration
			var teamJSON []byte
			if err := rows.Scan(&reg.ID, &reg.EventID, &teamJSON, &reg.Amount, &reg.OrderID,
				&reg.PaymentStatus, &reg.Attended, &reg.CreatedAt,
				&reg.EventName, &reg.EventVenue, &reg.EventDate); err != nil {
				log.Printf("Error scanning registration: %v", err)
				continue
			}
			if err := json.Unmarshal(teamJSON, &reg.Team); err != nil {
				reg.Team = []string{}
			}
			registrations = append(registrations, reg)
		}

		utils.ResponseJSON(w, registrations)
	}
}

// EventRegistrationStatus tells the event page whether the caller is
// already registered and how many slots remain.
func (rc *RegistrationController) EventRegistrationStatus(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		eventID, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil || eventID <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid event ID"})
			return
		}

		user, err := GetUserByID(db, userID)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		event, err := GetEventByID(db, eventID)
		if err == sql.ErrNoRows {
			utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "Event not found"})
			return
		}
		if err != nil {
			log.Printf("Error fetching event %d: %v", eventID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		var registered int
		err = db.QueryRow(`SELECT COUNT(*) FROM registrations
			WHERE event_id = ? AND JSON_CONTAINS(team, JSON_QUOTE(?))`,
			eventID, user.TexusID).Scan(&registered)
		if err != nil {
			log.Printf("Error checking registration for %s: %v", user.TexusID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		utils.ResponseJSON(w, map[string]interface{}{
			"event_id":   eventID,
			"registered": registered > 0,
			"slots_left": event.SlotsLeft,
			"full":       event.IsFull(),
		})
	}
}
