package model

import "time"

type NotificationType string

const (
	NotificationSessionRequested NotificationType = "session_requested"
	NotificationSessionConfirmed NotificationType = "session_confirmed"
	NotificationSessionDeclined  NotificationType = "session_declined"
	NotificationSessionCanceled  NotificationType = "session_canceled"
	NotificationSessionCompleted NotificationType = "session_completed"
	NotificationSessionReminder  NotificationType = "session_reminder"
)

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
