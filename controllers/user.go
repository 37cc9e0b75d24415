package controllers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"texus-backend/models"
	"texus-backend/utils"

	"github.com/google/uuid"
)

type Controller struct{}

func (c Controller) Signup(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var user models.User
		var error models.Error

		err := json.NewDecoder(r.Body).Decode(&user)
		if err != nil {
			error.Message = "Invalid request body."
			utils.RespondWithError(w, http.StatusBadRequest, error)
			return
		}
		defer r.Body.Close()

		if user.Email == "" {
			error.Message = "Email is required."
			utils.RespondWithError(w, http.StatusBadRequest, error)
			return
		}
		if !utils.IsCollegeEmail(user.Email) {
			error.Message = "Please sign up with your college email address."
			utils.RespondWithError(w, http.StatusForbidden, error)
			return
		}
		if user.Password == "" {
			error.Message = "Password is required."
			utils.RespondWithError(w, http.StatusBadRequest, error)
			return
		}
		if strings.TrimSpace(user.Name) == "" {
			error.Message = "Name is required."
			utils.RespondWithError(w, http.StatusBadRequest, error)
			return
		}

		var existingID int
		err = db.QueryRow("SELECT id FROM users WHERE email = ?", user.Email).Scan(&existingID)
		if err == nil {
			error.Message = "An account with this email already exists."
			utils.RespondWithError(w, http.StatusConflict, error)
			return
		} else if err != sql.ErrNoRows {
			log.Printf("Error checking existing user: %v", err)
			error.Message = "Server error."
			utils.RespondWithError(w, http.StatusInternalServerError, error)
			return
		}

		hash, err := utils.HashPassword(user.Password)
		if err != nil {
			log.Printf("Error hashing password: %v", err)
			error.Message = "Server error."
			utils.RespondWithError(w, http.StatusInternalServerError, error)
			return
		}

		texusID, err := utils.GenerateTexusID()
		if err != nil {
			log.Printf("Error generating texus id: %v", err)
			error.Message = "Server error."
			utils.RespondWithError(w, http.StatusInternalServerError, error)
			return
		}

		// Register number rides inside the free-text name field
		info := utils.ParseRegisterNumber(user.Name)

		query := `INSERT INTO users (texus_id, name, email, phone, password, register_no, department, college, year, avatar_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err = db.Exec(query, texusID, info.Name, user.Email, user.Phone, hash,
			info.RegisterNo, info.Department, user.College, info.Year, user.AvatarURL)
		if err != nil {
			log.Printf("Error inserting user: %v", err)
			error.Message = "Server error."
			utils.RespondWithError(w, http.StatusInternalServerError, error)
			return
		}

		utils.ResponseJSON(w, map[string]string{
			"message":  "Account created successfully.",
			"texus_id": texusID,
		})
	}
}

func (c Controller) Login(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		var error models.Error

		err := json.NewDecoder(r.Body).Decode(&creds)
		if err != nil {
			error.Message = "Invalid request body."
			utils.RespondWithError(w, http.StatusBadRequest, error)
			return
		}
		defer r.Body.Close()

		if creds.Email == "" || creds.Password == "" {
			error.Message = "Email and password are required."
			utils.RespondWithError(w, http.StatusBadRequest, error)
			return
		}

		var user models.User
		var hashedPassword string
		var phone, department, college, avatarURL sql.NullString
		query := "SELECT id, texus_id, name, email, phone, password, department, college, year, avatar_url FROM users WHERE email = ?"
		err = db.QueryRow(query, creds.Email).Scan(&user.ID, &user.TexusID, &user.Name, &user.Email,
			&phone, &hashedPassword, &department, &college, &user.Year, &avatarURL)
		if err == sql.ErrNoRows {
			error.Message = "User not found."
			utils.RespondWithError(w, http.StatusNotFound, error)
			return
		}
		if err != nil {
			log.Printf("Error querying user: %v", err)
			error.Message = "Server error."
			utils.RespondWithError(w, http.StatusInternalServerError, error)
			return
		}

		if !utils.ComparePasswords(hashedPassword, []byte(creds.Password)) {
			error.Message = "Invalid password."
			utils.RespondWithError(w, http.StatusUnauthorized, error)
			return
		}

		user.Phone = phone.String
		user.Department = department.String
		user.College = college.String
		user.AvatarURL = avatarURL.String

		accessToken, err := utils.GenerateToken(user, 24*time.Hour)
		if err != nil {
			log.Printf("Error generating token: %v", err)
			error.Message = "Server error."
			utils.RespondWithError(w, http.StatusInternalServerError, error)
			return
		}

		refreshToken, err := utils.GenerateRefreshToken(user, 7*24*time.Hour)
		if err != nil {
			log.Printf("Error generating refresh token: %v", err)
			error.Message = "Server error."
			utils.RespondWithError(w, http.StatusInternalServerError, error)
			return
		}

		utils.ResponseJSON(w, map[string]string{
			"token":         accessToken,
			"refresh_token": refreshToken,
			"texus_id":      user.TexusID,
		})
	}
}

func (c Controller) GetMe(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		user, err := GetUserByID(db, userID)
		if err == sql.ErrNoRows {
			utils.RespondWithError(w, http.StatusNotFound, models.Error{Message: "User not found"})
			return
		}
		if err != nil {
			log.Printf("Error fetching user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}

		utils.ResponseJSON(w, user)
	}
}

func (c Controller) UpdateProfile(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		var body struct {
			Name    string `json:"name"`
			Phone   string `json:"phone"`
			College string `json:"college"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid body"})
			return
		}
		defer r.Body.Close()

		if strings.TrimSpace(body.Name) == "" {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Name is required"})
			return
		}

		info := utils.ParseRegisterNumber(body.Name)

		query := "UPDATE users SET name = ?, phone = ?, college = ?"
		args := []interface{}{info.Name, body.Phone, body.College}
		if info.RegisterNo != "" {
			query += ", register_no = ?, department = ?, year = ?"
			args = append(args, info.RegisterNo, info.Department, info.Year)
		}
		query += " WHERE id = ?"
		args = append(args, userID)

		if _, err := db.Exec(query, args...); err != nil {
			log.Printf("Error updating profile for user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to update profile"})
			return
		}

		user, err := GetUserByID(db, userID)
		if err != nil {
			utils.ResponseJSON(w, map[string]string{"message": "Profile updated"})
			return
		}
		utils.ResponseJSON(w, user)
	}
}

func (c Controller) UploadAvatar(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := utils.VerifyToken(r)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid form data"})
			return
		}

		file, header, err := r.FormFile("avatar")
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Avatar file is required"})
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Only JPG and PNG images are allowed"})
			return
		}

		fileName := fmt.Sprintf("avatar-%s%s", uuid.New().String(), ext)
		url, err := utils.UploadFileToS3(file, fileName, "avatar")
		if err != nil {
			log.Printf("Error uploading avatar for user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to upload avatar"})
			return
		}

		if _, err := db.Exec("UPDATE users SET avatar_url = ? WHERE id = ?", url, userID); err != nil {
			log.Printf("Error saving avatar url for user %d: %v", userID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to save avatar"})
			return
		}

		utils.ResponseJSON(w, map[string]string{"avatar_url": url})
	}
}

// SearchParticipants powers the team builder: partial texus id match,
// exclude ids already on the team, cap at 5 results.
func (c Controller) SearchParticipants(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := utils.VerifyToken(r); err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
			return
		}

		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Search query is required"})
			return
		}

		exclude := []string{}
		if raw := r.URL.Query().Get("exclude"); raw != "" {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					exclude = append(exclude, id)
				}
			}
		}

		query := "SELECT texus_id, name FROM users WHERE texus_id LIKE ?"
		args := []interface{}{"%" + q + "%"}
		if len(exclude) > 0 {
			query += " AND texus_id NOT IN (?" + strings.Repeat(",?", len(exclude)-1) + ")"
			for _, id := range exclude {
				args = append(args, id)
			}
		}
		query += " LIMIT 5"

		rows, err := db.Query(query, args...)
		if err != nil {
			log.Printf("Error searching participants: %v", err)
			utils.RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Server error"})
			return
		}
		defer rows.Close()

		participants := []models.Participant{}
		for rows.Next() {
			var p models.Participant
			if err := rows.Scan(&p.TexusID, &p.Name); err != nil {
				log.Printf("Error scanning participant: %v", err)
				continue
			}
			participants = append(participants, p)
		}

		utils.ResponseJSON(w, participants)
	}
}

func GetUserByID(db *sql.DB, userID int) (models.User, error) {
	var user models.User
	var phone, registerNo, department, college, avatarURL sql.NullString

	query := "SELECT id, texus_id, name, email, phone, register_no, department, college, year, avatar_url FROM users WHERE id = ?"
	err := db.QueryRow(query, userID).Scan(&user.ID, &user.TexusID, &user.Name, &user.Email,
		&phone, &registerNo, &department, &college, &user.Year, &avatarURL)
	if err != nil {
		return user, err
	}

	user.Phone = phone.String
	user.RegisterNo = registerNo.String
	user.Department = department.String
	user.College = college.String
	user.AvatarURL = avatarURL.String
	return user, nil
}

func GetUserByTexusID(db *sql.DB, texusID string) (models.User, error) {
	var user models.User
	var phone, avatarURL sql.NullString

	query := "SELECT id, texus_id, name, email, phone, avatar_url FROM users WHERE texus_id = ?"
	err := db.QueryRow(query, texusID).Scan(&user.ID, &user.TexusID, &user.Name, &user.Email, &phone, &avatarURL)
	if err != nil {
		return user, err
	}

	user.Phone = phone.String
	user.AvatarURL = avatarURL.String
	return user, nil
}
