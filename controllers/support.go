package controllers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"texus-backend/models"
	"texus-backend/utils"

	"github.com/google/uuid"
)

type SupportController struct{}

const maxProofSize = 5 << 20 // 5MB

// ValidateSupportTicket applies the category rules before anything touches
// the network: payment needs an issue type and a proof file, event and
// registration categories need an event, everyone needs a real description.
func ValidateSupportTicket(ticket models.SupportTicket, hasProof bool) (string, bool) {
	switch ticket.Category {
	case models.TicketCategoryPayment:
		if strings.TrimSpace(ticket.IssueType) == "" {
			return "Payment issue type is required", false
		}
		if !hasProof {
			return "Payment proof file is required", false
		}
	case models.TicketCategoryEvent, models.TicketCategoryRegistration:
		if ticket.EventID <= 0 {
			return "Please select the event this issue is about", false
		}
	default:
		return "Invalid category", false
	}

	if strings.TrimSpace(ticket.Title) == "" {
		return "Title is required", false
	}
	if len(strings.TrimSpace(ticket.Description)) < 20 {
		return "Description must be at least 20 characters", false
	}
	return "", true
}

func (sc *SupportController) CreateTicket(db *sql.DB) http.HandlerFunc {
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

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid form data"})
			return
		}

		ticket := models.SupportTicket{
			TexusID:     user.TexusID,
			Category:    r.FormValue("category"),
			IssueType:   r.FormValue("issue_type"),
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Status:      models.TicketStatusOpen,
		}
		if eventIDStr := r.FormValue("event_id"); eventIDStr != "" {
			eventID, err := strconv.Atoi(eventIDStr)
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid event_id format"})
				return
			}
			ticket.EventID = eventID
		}

		file, header, fileErr := r.FormFile("proof")
		hasProof := fileErr == nil
		if hasProof {
			defer file.Close()
			// rejected before any upload is attempted
			if header.Size > maxProofSize {
				utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Proof file must be under 5MB"})
				return
			}
		}

		if msg, ok := ValidateSupportTicket(ticket, hasProof); !ok {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: msg})
			return
		}

		if hasProof {
			ext := strings.ToLower(filepath.Ext(header.Filename))
			fileName := fmt.Sprintf("proof-%s%s", uuid.New().String(), ext)
			url, err := utils.UploadFileToS3(file, fileName, "paymentproof")
			if err != nil {
				log.Printf("Error uploading proof for %s: %v", user.TexusID, err)
				utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to upload proof file"})
				return
			}
			ticket.ProofURL = url
		}

		query := `INSERT INTO support_tickets (texus_id, category, issue_type, event_id, title, description, proof_url, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		var eventID interface{}
		if ticket.EventID > 0 {
			eventID = ticket.EventID
		}
		result, err := db.Exec(query, ticket.TexusID, ticket.Category, ticket.IssueType, eventID,
			ticket.Title, ticket.Description, ticket.ProofURL, ticket.Status)
		if err != nil {
			log.Printf("Error inserting support ticket: %v", err)
			// don't leave the uploaded proof orphaned
			if ticket.ProofURL != "" {
				if delErr := utils.DeleteFileFromS3(ticket.ProofURL); delErr != nil {
					log.Printf("Error cleaning up proof upload: %v", delErr)
				}
			}
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to create ticket"})
			return
		}

		ticketID, _ := result.LastInsertId()

		go utils.SendEmail(os.Getenv("SUPPORT_ADMIN_EMAIL"), "New support ticket #"+strconv.FormatInt(ticketID, 10),
			fmt.Sprintf("Category: %s\nFrom: %s (%s)\nTitle: %s\n\n%s",
				ticket.Category, user.Name, user.Email, ticket.Title, ticket.Description))

		utils.ResponseJSON(w, map[string]interface{}{
			"message":   "Your ticket has been received. We will get back to you soon!",
			"ticket_id": ticketID,
		})
	}
}

func (sc *SupportController) MyTickets(db *sql.DB) http.HandlerFunc {
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

		rows, err := db.Query(`SELECT id, texus_id, category, issue_type, COALESCE(event_id, 0), title, description,
				COALESCE(proof_url, ''), status, COALESCE(admin_notes, ''), created_at
			FROM support_tickets WHERE texus_id = ? ORDER BY created_at DESC`, user.TexusID)
		if err != nil {
			log.Printf("Error fetching tickets for %s: %v", user.TexusID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to fetch tickets"})
			return
		}
		defer rows.Close()

		tickets := []models.SupportTicket{}
		for rows.Next() {
			var t models.SupportTicket
			if err := rows.Scan(&t.ID, &t.TexusID, &t.Category, &t.IssueType, &t.EventID,
				&t.Title, &t.Description, &t.ProofURL, &t.Status, &t.AdminNotes, &t.CreatedAt); err != nil {
				log.Printf("Error scanning ticket: %v", err)
				continue
			}
			tickets = append(tickets, t)
		}

		utils.ResponseJSON(w, tickets)
	}
}
