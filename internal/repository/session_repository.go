package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hiredvalley/mentorbooking/internal/model"
	"github.com/hiredvalley/mentorbooking/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{Repository: base.NewRepository(pool)}
}

const sessionColumns = `id, mentor_profile_id, mentee_id, scheduled_at, duration_minutes, status,
		note, currency, amount, platform_fee, mentor_payout, payment_status, payment_intent_id,
		rating, reminder_sent, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var session model.Session
	err := row.Scan(
		&session.ID,
		&session.MentorProfileID,
		&session.MenteeID,
		&session.ScheduledAt,
		&session.DurationMinutes,
		&session.Status,
		&session.Note,
		&session.Currency,
		&session.Amount,
		&session.PlatformFee,
		&session.MentorPayout,
		&session.PaymentStatus,
		&session.PaymentIntentID,
		&session.Rating,
		&session.ReminderSent,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Create создаёт новую сессию. Exclusion constraint в БД отклонит запись,
// если окно ментора уже занято активной сессией (конкурентные запросы).
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO mentor_sessions (mentor_profile_id, mentee_id, scheduled_at, duration_minutes,
			status, note, currency, amount, platform_fee, mentor_payout, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		session.MentorProfileID,
		session.MenteeID,
		session.ScheduledAt,
		session.DurationMinutes,
		session.Status,
		session.Note,
		session.Currency,
		session.Amount,
		session.PlatformFee,
		session.MentorPayout,
		session.PaymentStatus,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetByID получает сессию по ID
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM mentor_sessions WHERE id = $1`

	session, err := scanSession(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return session, nil
}

// CountActiveInWindow считает активные (requested/confirmed) сессии ментора,
// чьё время начала попадает в окно [from, to]
func (r *SessionRepository) CountActiveInWindow(ctx context.Context, mentorProfileID int64, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM mentor_sessions
		WHERE mentor_profile_id = $1
			AND status IN ('requested', 'confirmed')
			AND scheduled_at >= $2
			AND scheduled_at <= $3
	`

	var count int
	err := r.QueryRow(ctx, query, mentorProfileID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sessions in window: %w", err)
	}

	return count, nil
}

// UpdateStatusFrom переводит сессию в новый статус только если текущий статус
// входит в from (compare-and-swap). Возвращает false, если переход не случился -
// значит сессия уже в другом состоянии.
func (r *SessionRepository) UpdateStatusFrom(ctx context.Context, id int64, to model.SessionStatus, from ...model.SessionStatus) (bool, error) {
	query := `
		UPDATE mentor_sessions
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)
	`

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	affected, err := r.ExecAffected(ctx, query, to, id, statuses)
	if err != nil {
		return false, fmt.Errorf("update session status: %w", err)
	}

	return affected > 0, nil
}

// SetPaymentIntent сохраняет ссылку на payment intent провайдера
func (r *SessionRepository) SetPaymentIntent(ctx context.Context, id int64, intentID string) error {
	query := `UPDATE mentor_sessions SET payment_intent_id = $1, updated_at = now() WHERE id = $2`

	affected, err := r.ExecAffected(ctx, query, intentID, id)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}

// SetPaymentStatus обновляет платёжный статус сессии
func (r *SessionRepository) SetPaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	query := `UPDATE mentor_sessions SET payment_status = $1, updated_at = now() WHERE id = $2`

	affected, err := r.ExecAffected(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}

// SetRating сохраняет оценку менти на сессии
func (r *SessionRepository) SetRating(ctx context.Context, id int64, rating int) error {
	query := `UPDATE mentor_sessions SET rating = $1, updated_at = now() WHERE id = $2`

	affected, err := r.ExecAffected(ctx, query, rating, id)
	if err != nil {
		return fmt.Errorf("set session rating: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}

// GetByMenteeID получает все сессии менти
func (r *SessionRepository) GetByMenteeID(ctx context.Context, menteeID int64) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM mentor_sessions
		WHERE mentee_id = $1
		ORDER BY scheduled_at DESC
	`

	return r.querySessions(ctx, query, menteeID)
}

// GetByMentorProfileID получает все сессии ментора
func (r *SessionRepository) GetByMentorProfileID(ctx context.Context, mentorProfileID int64) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM mentor_sessions
		WHERE mentor_profile_id = $1
		ORDER BY scheduled_at DESC
	`

	return r.querySessions(ctx, query, mentorProfileID)
}

// GetUpcomingUnreminded получает подтверждённые сессии, начинающиеся до deadline,
// по которым ещё не отправлено напоминание
func (r *SessionRepository) GetUpcomingUnreminded(ctx context.Context, deadline time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM mentor_sessions
		WHERE status = 'confirmed'
			AND reminder_sent = false
			AND scheduled_at > now()
			AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`

	return r.querySessions(ctx, query, deadline)
}

// MarkReminderSent помечает что напоминание по сессии отправлено
func (r *SessionRepository) MarkReminderSent(ctx context.Context, id int64) error {
	query := `UPDATE mentor_sessions SET reminder_sent = true, updated_at = now() WHERE id = $1`

	if _, err := r.ExecAffected(ctx, query, id); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}

	return nil
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*model.Session, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}
