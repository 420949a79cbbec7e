package model

import "time"

type SessionAction string

const (
	ActionRequested      SessionAction = "requested"
	ActionConfirmed      SessionAction = "confirmed"
	ActionDeclined       SessionAction = "declined"
	ActionCanceled       SessionAction = "canceled"
	ActionCompleted      SessionAction = "completed"
	ActionRated          SessionAction = "rated"
	ActionPaymentFailure SessionAction = "payment_failure"
)

// SessionEvent структурированная запись истории сессии.
// Причины отмен, ответы ментора и отзывы пишутся сюда, а не конкатенацией в note.
type SessionEvent struct {
	ID        int64         `json:"id"`
	SessionID int64         `json:"session_id"`
	ActorID   int64         `json:"actor_id"`
	Action    SessionAction `json:"action"`
	Detail    string        `json:"detail"`
	CreatedAt time.Time     `json:"created_at"`
}
