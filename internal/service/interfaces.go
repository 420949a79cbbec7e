package service

import (
	"context"
	"time"

	"github.com/hiredvalley/mentorbooking/internal/model"
)

// Узкие интерфейсы хранилищ, объявленные на стороне потребителя.
// Реализуются pgx-репозиториями, в тестах подменяются моками.

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type MentorStore interface {
	Create(ctx context.Context, mentor *model.MentorProfile) error
	GetByID(ctx context.Context, id int64) (*model.MentorProfile, error)
	GetByUserID(ctx context.Context, userID int64) (*model.MentorProfile, error)
	ListAvailable(ctx context.Context) ([]*model.MentorProfile, error)
	Update(ctx context.Context, mentor *model.MentorProfile) error
	SetAvailability(ctx context.Context, id int64, available bool) error
	IncrementSessionCount(ctx context.Context, id int64) error
	ApplyRating(ctx context.Context, id int64, rating int) error
}

type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	CountActiveInWindow(ctx context.Context, mentorProfileID int64, from, to time.Time) (int, error)
	UpdateStatusFrom(ctx context.Context, id int64, to model.SessionStatus, from ...model.SessionStatus) (bool, error)
	SetPaymentIntent(ctx context.Context, id int64, intentID string) error
	SetPaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error
	SetRating(ctx context.Context, id int64, rating int) error
	GetByMenteeID(ctx context.Context, menteeID int64) ([]*model.Session, error)
	GetByMentorProfileID(ctx context.Context, mentorProfileID int64) ([]*model.Session, error)
	GetUpcomingUnreminded(ctx context.Context, deadline time.Time) ([]*model.Session, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

type EscrowStore interface {
	Create(ctx context.Context, payment *model.EscrowPayment) error
	GetByIntentID(ctx context.Context, intentID string) (*model.EscrowPayment, error)
	MarkCaptured(ctx context.Context, intentID string) error
	MarkClosed(ctx context.Context, intentID string, status model.EscrowStatus) error
}

type EventStore interface {
	Append(ctx context.Context, event *model.SessionEvent) error
	GetBySessionID(ctx context.Context, sessionID int64) ([]*model.SessionEvent, error)
}

type PaymentTaskStore interface {
	Enqueue(ctx context.Context, task *model.PaymentTask) error
	GetPending(ctx context.Context, limit int) ([]*model.PaymentTask, error)
	MarkDone(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, lastError string, maxAttempts int) error
}

type NotificationStore interface {
	Create(ctx context.Context, notification *model.Notification) error
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
}

// Notifier рассылает уведомление контрагенту по всем каналам.
// Fire-and-forget: ядро не зависит от подтверждения доставки.
type Notifier interface {
	Dispatch(userID int64, notificationType model.NotificationType, title, message, link string)
}

// EscrowCoordinator контракт эскроу-координатора для лайфцикла сессии
type EscrowCoordinator interface {
	CreateHold(ctx context.Context, params HoldParams) (*HoldResult, error)
	Capture(ctx context.Context, intentID string) (float64, error)
	Cancel(ctx context.Context, intentID, reason string) (model.EscrowStatus, error)
}
