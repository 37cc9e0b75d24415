package controllers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"texus-backend/models"
	"texus-backend/utils"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"
)

type TicketController struct{}

func qrKey(eventID int) string {
	return strconv.Itoa(eventID)
}

// GetTicket issues the caller's QR ticket for an event. Only available
// once the registration has a completed payment.
func (tc *TicketController) GetTicket(db *sql.DB) http.HandlerFunc {
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

		var paymentStatus string
		var attended bool
		err = db.QueryRow(`SELECT payment_status, attended FROM registrations
			WHERE event_id = ? AND JSON_CONTAINS(team, JSON_QUOTE(?))`,
			eventID, user.TexusID).Scan(&paymentStatus, &attended)
		if err == sql.ErrNoRows {
			utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "No registration found for this event"})
			return
		}
		if err != nil {
			log.Printf("Error fetching ticket for %s event %d: %v", user.TexusID, eventID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		if paymentStatus != models.PaymentCompleted {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Payment is not completed for this registration"})
			return
		}

		payload := models.TicketPayload{
			TexusID:       user.TexusID,
			Name:          user.Name,
			EventID:       eventID,
			PaymentStatus: paymentStatus,
			Attended:      attended,
		}

		encoded, err := utils.EncodeQRPayload(payload, qrKey(eventID))
		if err != nil {
			log.Printf("Error encoding ticket payload: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to build ticket"})
			return
		}

		if r.URL.Query().Get("format") == "png" {
			png, err := qrcode.Encode(encoded, qrcode.Medium, 256)
			if err != nil {
				log.Printf("Error rendering ticket QR: %v", err)
				utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to render QR"})
				return
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
			return
		}

		utils.ResponseJSON(w, map[string]interface{}{
			"event_id": eventID,
			"payload":  encoded,
		})
	}
}

// Scan decodes a presented QR payload, validates it against the stored
// registration and marks attendance. Used by staff at the venue door.
func (tc *TicketController) Scan(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := utils.VerifyToken(r); err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		var body struct {
			EventID int    `json:"event_id"`
			Payload string `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EventID <= 0 || body.Payload == "" {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid body"})
			return
		}
		defer r.Body.Close()

		payload, err := utils.DecodeQRPayload(body.Payload, qrKey(body.EventID))
		if err != nil || payload.EventID != body.EventID {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid or tampered ticket"})
			return
		}

		var regID int
		var paymentStatus string
		var attended bool
		err = db.QueryRow(`SELECT id, payment_status, attended FROM registrations
			WHERE event_id = ? AND JSON_CONTAINS(team, JSON_QUOTE(?))`,
			body.EventID, payload.TexusID).Scan(&regID, &paymentStatus, &attended)
		if err == sql.ErrNoRows {
			utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "No registration found for this ticket"})
			return
		}
		if err != nil {
			log.Printf("Error verifying ticket for %s: %v", payload.TexusID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		if paymentStatus != models.PaymentCompleted {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Payment is not completed for this registration"})
			return
		}
		if attended {
			utils.RespondWithError(w, http.StatusConflict, models.Error{Message: "Ticket already used"})
			return
		}

		if _, err := db.Exec("UPDATE registrations SET attended = true WHERE id = ?", regID); err != nil {
			log.Printf("Error marking attendance for registration %d: %v", regID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to mark attendance"})
			return
		}

		utils.ResponseJSON(w, map[string]interface{}{
			"texus_id":       payload.TexusID,
			"name":           payload.Name,
			"event_id":       payload.EventID,
			"payment_status": paymentStatus,
			"checked_in":     true,
		})
	}
}
