package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"texus-backend/controllers"
	"texus-backend/driver"
	"texus-backend/realtime"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

var db *sql.DB

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, relying on process environment")
	}
	secret := os.Getenv("SECRET")
	if secret == "" {
		log.Fatal("SECRET variable is not set")
	}
	db = driver.ConnectDB()
	defer db.Close()

	hub := realtime.NewHub()
	go hub.Run()

	controller := controllers.Controller{}
	eventController := controllers.EventController{}
	registrationController := controllers.RegistrationController{Hub: hub}
	musicalNightController := controllers.MusicalNightController{Hub: hub}
	paymentController := controllers.PaymentController{Hub: hub}
	ticketController := controllers.TicketController{}
	supportController := controllers.SupportController{}

	router := mux.NewRouter()

	router.HandleFunc("/signup", controller.Signup(db)).Methods("POST")
	router.HandleFunc("/login", controller.Login(db)).Methods("POST")
	router.HandleFunc("/getMe", controller.GetMe(db)).Methods("GET")
	router.HandleFunc("/profile", controller.UpdateProfile(db)).Methods("PUT")
	router.HandleFunc("/profile/avatar", controller.UploadAvatar(db)).Methods("POST")
	router.HandleFunc("/participants/search", controller.SearchParticipants(db)).Methods("GET")

	router.HandleFunc("/events", eventController.GetEvents(db)).Methods("GET")
	router.HandleFunc("/events/{id}", eventController.GetEvent(db)).Methods("GET")
	router.HandleFunc("/events/{id}/status", registrationController.EventRegistrationStatus(db)).Methods("GET")
	router.HandleFunc("/events/{id}/ticket", ticketController.GetTicket(db)).Methods("GET")

	router.HandleFunc("/registrations", registrationController.RegisterTeam(db)).Methods("POST")
	router.HandleFunc("/registrations/mine", registrationController.MyRegistrations(db)).Methods("GET")
	router.HandleFunc("/registrations/{id}/intent", registrationController.ReissueIntent(db)).Methods("POST")

	router.HandleFunc("/musical-night/register", musicalNightController.Register(db)).Methods("POST")
	router.HandleFunc("/musical-night/mine", musicalNightController.MyStatus(db)).Methods("GET")
	router.HandleFunc("/musical-night/collection", musicalNightController.UpdateCollection(db)).Methods("PUT")

	router.HandleFunc("/payments/checkout", paymentController.Checkout(db)).Methods("GET")
	router.HandleFunc("/payments/qr", paymentController.CheckoutQR(db)).Methods("GET")
	router.HandleFunc("/payments/callback", paymentController.Callback(db)).Methods("POST")

	router.HandleFunc("/tickets/scan", ticketController.Scan(db)).Methods("POST")

	router.HandleFunc("/support", supportController.CreateTicket(db)).Methods("POST")
	router.HandleFunc("/support/mine", supportController.MyTickets(db)).Methods("GET")

	router.HandleFunc("/ws", realtime.ServeWS(hub)).Methods("GET")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	log.Println("Server started on port " + port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
