package models

type User struct {
	ID         int    `json:"id"`
	TexusID    string `json:"texus_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Password   string `json:"password,omitempty"`
	RegisterNo string `json:"register_no,omitempty"`
	Department string `json:"department,omitempty"`
	College    string `json:"college,omitempty"`
	Year       int    `json:"year,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// Participant is the shape returned by team-member search.
type Participant struct {
	TexusID string `json:"texus_id"`
	Name    string `json:"name"`
}
