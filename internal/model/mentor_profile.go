package model

import "time"

type MentorProfile struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Bio          string    `json:"bio"`
	Skills       []string  `json:"skills"`
	HourlyRate   float64   `json:"hourly_rate"`
	Currency     string    `json:"currency"`
	IsAvailable  bool      `json:"is_available"`
	Rating       float64   `json:"rating"`        // скользящее среднее по оценкам
	ReviewCount  int       `json:"review_count"`  // количество оценок
	SessionCount int       `json:"session_count"` // количество завершённых сессий
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Дополнительные поля для удобства (не из БД)
	User *User `json:"user,omitempty"`
}
