package controllers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"

	"texus-backend/models"
	"texus-backend/realtime"
	"texus-backend/utils"

	"github.com/google/uuid"
)

// Flagship musical-night product. Registration is per participant, scoped
// to the currently open sales phase.

type MusicalNightController struct {
	Hub *realtime.Hub
}

func currentPhase() int {
	if phase, err := strconv.Atoi(os.Getenv("MUSICAL_NIGHT_PHASE")); err == nil && phase > 0 {
		return phase
	}
	return 1
}

func musicalNightFee(phase int) int {
	if fee, err := strconv.Atoi(os.Getenv("MUSICAL_NIGHT_FEE")); err == nil && fee > 0 {
		return fee
	}
	return 500
}

func musicalNightSlots() int {
	if slots, err := strconv.Atoi(os.Getenv("MUSICAL_NIGHT_SLOTS")); err == nil && slots > 0 {
		return slots
	}
	return 1000
}

func (mc *MusicalNightController) Register(db *sql.DB) http.HandlerFunc {
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
			ReferralCode string `json:"referral_code"`
		}
		// body is optional
		_ = json.NewDecoder(r.Body).Decode(&body)
		defer r.Body.Close()

		phase := currentPhase()

		tx, err := db.Begin()
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
			return
		}
		defer tx.Rollback()

		// Lock the phase row; concurrent submissions for the same phase
		// queue up here the way event registrations queue on the event
		// row, so the duplicate and capacity checks below are atomic
		// with the insert.
		if _, err := tx.Exec("INSERT IGNORE INTO musical_night_phases (phase) VALUES (?)", phase); err != nil {
			log.Printf("Error preparing phase row %d: %v", phase, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
			return
		}
		var lockedPhase int
		if err := tx.QueryRow("SELECT phase FROM musical_night_phases WHERE phase = ? FOR UPDATE", phase).Scan(&lockedPhase); err != nil {
			log.Printf("Error locking phase %d: %v", phase, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
			return
		}

		var existing int
		err = tx.QueryRow("SELECT COUNT(*) FROM musical_night WHERE texus_id = ? AND phase = ?",
			user.TexusID, phase).Scan(&existing)
		if err != nil {
			log.Printf("Error checking musical night registration: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
			return
		}
		if existing > 0 {
			utils.RespondWithError(w, http.StatusConflict, models.Error{Message: "Already registered for this phase"})
			return
		}

		var count int
		if err := tx.QueryRow("SELECT COUNT(*) FROM musical_night WHERE phase = ?", phase).Scan(&count); err != nil {
			log.Printf("Error counting musical night registrations: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Database error"})
			return
		}
		if count >= musicalNightSlots() {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Event Full"})
			return
		}

		amount := ComputeAmount(musicalNightFee(phase), body.ReferralCode)
		orderID := uuid.New().String()

		_, err = tx.Exec(`INSERT INTO musical_night (texus_id, phase, order_id, amount, payment_status, merch_collected, ticket_collected)
			VALUES (?, ?, ?, ?, ?, false, false)`,
			user.TexusID, phase, orderID, amount, models.PaymentPending)
		if err != nil {
			log.Printf("Error inserting musical night registration: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to register"})
			return
		}

		if err := tx.Commit(); err != nil {
			log.Printf("Error committing musical night registration: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to complete registration"})
			return
		}

		intent, err := utils.SignPaymentIntent(utils.PaymentIntent{
			UserID:       userID,
			Team:         []string{user.TexusID},
			Amount:       amount,
			ReferralCode: body.ReferralCode,
			MusicalNight: true,
			Phase:        phase,
			OrderID:      orderID,
		})
		if err != nil {
			log.Printf("Error signing payment intent: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to prepare payment"})
			return
		}

		if mc.Hub != nil {
			mc.Hub.Publish(realtime.Change{
				Table:  realtime.TableMusicalNight,
				Action: realtime.ActionInsert,
				Payload: map[string]interface{}{
					"order_id": orderID,
					"phase":    phase,
				},
			})
		}

		utils.ResponseJSON(w, map[string]interface{}{
			"message":        "Registration created, proceed to payment",
			"order_id":       orderID,
			"phase":          phase,
			"amount":         amount,
			"payment_intent": intent,
		})
	}
}

func (mc *MusicalNightController) MyStatus(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		user, err := GetUserByID(db, userID)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		rows, err := db.Query(`SELECT id, texus_id, phase, order_id, amount, payment_status, merch_collected, ticket_collected, created_at
			FROM musical_night WHERE texus_id = ? ORDER BY phase`, user.TexusID)
		if err != nil {
			log.Printf("Error fetching musical night status for %s: %v", user.TexusID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}
		defer rows.Close()

		registrations := []models.MusicalNightRegistration{}
		for rows.Next() {
			var reg models.MusicalNightRegistration
			if err := rows.Scan(&reg.ID, &reg.TexusID, &reg.Phase, &reg.OrderID, &reg.Amount,
				&reg.PaymentStatus, &reg.MerchCollected, &reg.TicketCollected, &reg.CreatedAt); err != nil {
				log.Printf("Error scanning musical night registration: %v", err)
				continue
			}
			registrations = append(registrations, reg)
		}

		utils.ResponseJSON(w, registrations)
	}
}

// UpdateCollection flips the merch / ticket collection flags at the desk.
func (mc *MusicalNightController) UpdateCollection(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := utils.VerifyToken(r); err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		var body struct {
			OrderID         string `json:"order_id"`
			MerchCollected  *bool  `json:"merch_collected"`
			TicketCollected *bool  `json:"ticket_collected"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OrderID == "" {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid body"})
			return
		}
		defer r.Body.Close()

		if body.MerchCollected == nil && body.TicketCollected == nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Nothing to update"})
			return
		}

		query := "UPDATE musical_night SET"
		args := []interface{}{}
		if body.MerchCollected != nil {
			query += " merch_collected = ?"
			args = append(args, *body.MerchCollected)
		}
		if body.TicketCollected != nil {
			if len(args) > 0 {
				query += ","
			}
			query += " ticket_collected = ?"
			args = append(args, *body.TicketCollected)
		}
		query += " WHERE order_id = ?"
		args = append(args, body.OrderID)

		result, err := db.Exec(query, args...)
		if err != nil {
			log.Printf("Error updating collection flags for order %s: %v", body.OrderID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to update"})
			return
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "Unknown order"})
			return
		}

		if mc.Hub != nil {
			mc.Hub.Publish(realtime.Change{
				Table:   realtime.TableMusicalNight,
				Action:  realtime.ActionUpdate,
				Payload: map[string]string{"order_id": body.OrderID},
			})
		}

		utils.ResponseJSON(w, map[string]string{"message": "Updated"})
	}
}
