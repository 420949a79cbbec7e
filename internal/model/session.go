package model

import "time"

type SessionStatus string

const (
	SessionStatusRequested SessionStatus = "requested" // Ожидает ответа ментора
	SessionStatusConfirmed SessionStatus = "confirmed" // Подтверждена ментором
	SessionStatusCompleted SessionStatus = "completed" // Завершена
	SessionStatusCanceled  SessionStatus = "canceled"  // Отменена
)

// IsTerminal проверяет что из статуса больше нет переходов
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCanceled
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusCaptured PaymentStatus = "captured"
	PaymentStatusCanceled PaymentStatus = "canceled"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Session struct {
	ID              int64         `json:"id"`
	MentorProfileID int64         `json:"mentor_profile_id"`
	MenteeID        int64         `json:"mentee_id"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`
	Note            string        `json:"note"` // заметка менти при запросе
	Currency        string        `json:"currency"`
	Amount          float64       `json:"amount"`       // полная стоимость сессии
	PlatformFee     float64       `json:"platform_fee"` // комиссия платформы
	MentorPayout    float64       `json:"mentor_payout"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentIntentID *string       `json:"payment_intent_id"`
	Rating          *int          `json:"rating"`
	ReminderSent    bool          `json:"reminder_sent"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	// Дополнительные поля для удобства (не из БД)
	Mentor *MentorProfile `json:"mentor,omitempty"`
	Mentee *User          `json:"mentee,omitempty"`
}

// EndsAt возвращает время окончания сессии
func (s *Session) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}
