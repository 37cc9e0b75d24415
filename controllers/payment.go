package controllers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"texus-backend/models"
	"texus-backend/realtime"
	"texus-backend/utils"

	qrcode "github.com/skip2/go-qrcode"
)

type PaymentController struct {
	Hub *realtime.Hub
}

// Checkout turns a signed payment intent into a gateway redirect. The
// amount is recomputed from the event row here, never trusted from the
// client. A bad intent is terminal: the frontend sends the user home.
func (pc *PaymentController) Checkout(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		intentToken := r.URL.Query().Get("intent")
		if intentToken == "" {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Payment intent is required"})
			return
		}

		intent, err := utils.VerifyPaymentIntent(intentToken, userID)
		if err != nil {
			log.Printf("Rejected payment intent for user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid payment request"})
			return
		}

		user, err := GetUserByID(db, userID)
		if err != nil {
			log.Printf("Error fetching user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		merchantID := os.Getenv("MERCHANT_ID")
		accessCode := os.Getenv("MERCHANT_ACCESS_CODE")
		workingKey := os.Getenv("MERCHANT_WORKING_KEY")
		gatewayURL := os.Getenv("GATEWAY_URL")
		hostURL := os.Getenv("HOST_URL")
		if merchantID == "" || accessCode == "" || workingKey == "" || gatewayURL == "" || hostURL == "" {
			log.Println("Payment gateway environment is not configured")
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Payments are temporarily unavailable"})
			return
		}

		var amount int
		var productLabel string
		if intent.MusicalNight {
			// flagship product has its own fee and merchant label
			amount = ComputeAmount(musicalNightFee(intent.Phase), intent.ReferralCode)
			productLabel = fmt.Sprintf("TEXUS Musical Night P%d", intent.Phase)
		} else {
			event, err := GetEventByID(db, intent.EventID)
			if err == sql.ErrNoRows {
				utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "Event not found"})
				return
			}
			if err != nil {
				log.Printf("Error fetching event %d: %v", intent.EventID, err)
				utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
				return
			}
			amount = ComputeAmount(event.Fee, intent.ReferralCode)
			productLabel = event.Name
		}

		params := url.Values{}
		params.Set("merchant_id", merchantID)
		params.Set("order_id", intent.OrderID)
		params.Set("currency", "INR")
		params.Set("amount", fmt.Sprintf("%d.00", amount))
		params.Set("redirect_url", hostURL+"/payments/callback")
		params.Set("cancel_url", hostURL+"/payments/callback")
		params.Set("language", "EN")
		params.Set("billing_name", user.Name)
		params.Set("billing_email", user.Email)
		params.Set("billing_tel", user.Phone)
		params.Set("merchant_param1", productLabel)
		params.Set("merchant_param2", user.TexusID)

		encRequest, err := utils.EncryptGatewayRequest(params.Encode(), workingKey)
		if err != nil {
			log.Printf("Error encrypting gateway request: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to build payment request"})
			return
		}

		checkoutURL := fmt.Sprintf("%s/transaction.do?command=initiateTransaction&encRequest=%s&access_code=%s",
			gatewayURL, encRequest, accessCode)

		// Mobile browser redirects are flaky at the venue, so the same URL
		// comes back three ways: follow, copy, or scan.
		utils.ResponseJSON(w, map[string]interface{}{
			"order_id":     intent.OrderID,
			"amount":       amount,
			"checkout_url": checkoutURL,
			"copy_url":     checkoutURL,
			"qr_url":       fmt.Sprintf("%s/payments/qr?intent=%s", hostURL, url.QueryEscape(intentToken)),
		})
	}
}

// CheckoutQR renders the checkout URL as a PNG for the scan path.
func (pc *PaymentController) CheckoutQR(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		intentToken := r.URL.Query().Get("intent")
		intent, err := utils.VerifyPaymentIntent(intentToken, userID)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid payment request"})
			return
		}

		hostURL := os.Getenv("HOST_URL")
		target := fmt.Sprintf("%s/payments/checkout?intent=%s", hostURL, url.QueryEscape(intentToken))

		png, err := qrcode.Encode(target, qrcode.Medium, 256)
		if err != nil {
			log.Printf("Error rendering payment QR for order %s: %v", intent.OrderID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to render QR"})
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}

// Callback receives the gateway's encrypted result post and settles the
// order. Both the registrations and musical_night tables are checked; the
// order id is unique across them.
func (pc *PaymentController) Callback(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workingKey := os.Getenv("MERCHANT_WORKING_KEY")

		if err := r.ParseForm(); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid callback"})
			return
		}

		encResp := r.FormValue("encResp")
		if encResp == "" {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Missing gateway response"})
			return
		}

		decrypted, err := utils.DecryptGatewayResponse(encResp, workingKey)
		if err != nil {
			log.Printf("Error decrypting gateway response: %v", err)
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid gateway response"})
			return
		}

		values, err := url.ParseQuery(decrypted)
		if err != nil {
			log.Printf("Error parsing gateway response: %v", err)
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid gateway response"})
			return
		}

		orderID := values.Get("order_id")
		orderStatus := values.Get("order_status")
		if orderID == "" {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Missing order id"})
			return
		}

		status := models.PaymentFailed
		if strings.EqualFold(orderStatus, "Success") {
			status = models.PaymentCompleted
		}

		result, err := db.Exec("UPDATE registrations SET payment_status = ? WHERE order_id = ?", status, orderID)
		if err != nil {
			log.Printf("Error updating payment status for order %s: %v", orderID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to record payment"})
			return
		}

		affected, _ := result.RowsAffected()
		table := realtime.TableRegistrations
		eventID := 0
		if affected > 0 {
			if err := db.QueryRow("SELECT event_id FROM registrations WHERE order_id = ?", orderID).Scan(&eventID); err != nil {
				// change still goes out, just without the event scope
				log.Printf("Error fetching event for order %s: %v", orderID, err)
			}
		} else {
			// not a standard event order, try the flagship table
			result, err = db.Exec("UPDATE musical_night SET payment_status = ? WHERE order_id = ?", status, orderID)
			if err != nil {
				log.Printf("Error updating musical night payment for order %s: %v", orderID, err)
				utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to record payment"})
				return
			}
			if affected, _ = result.RowsAffected(); affected == 0 {
				utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "Unknown order"})
				return
			}
			table = realtime.TableMusicalNight
		}

		if pc.Hub != nil {
			pc.Hub.Publish(realtime.Change{
				Table:   table,
				Action:  realtime.ActionUpdate,
				EventID: eventID,
				Payload: map[string]string{
					"order_id":       orderID,
					"payment_status": status,
				},
			})
		}

		utils.ResponseJSON(w, map[string]string{
			"order_id":       orderID,
			"payment_status": status,
		})
	}
}
