package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ConflictChecker проверяет пересечение запрашиваемого окна с активными сессиями ментора.
// Окно симметричное: новая сессия длительности D на время T конфликтует с активной
// сессией, чьё время начала попадает в [T-D, T+D].
type ConflictChecker struct {
	mentorRepo  MentorStore
	sessionRepo SessionStore
	logger      *zap.Logger
}

func NewConflictChecker(mentorRepo MentorStore, sessionRepo SessionStore, logger *zap.Logger) *ConflictChecker {
	return &ConflictChecker{
		mentorRepo:  mentorRepo,
		sessionRepo: sessionRepo,
		logger:      logger,
	}
}

// HasConflict возвращает true, если окно ментора занято.
// Если ментор не найден или недоступен - возвращает false: отклонить запрос
// по недоступности обязан вызывающий, здесь только проверка расписания.
func (c *ConflictChecker) HasConflict(ctx context.Context, mentorProfileID int64, proposedStart time.Time, durationMinutes int) (bool, error) {
	if durationMinutes <= 0 {
		return false, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if !proposedStart.After(time.Now()) {
		return false, fmt.Errorf("%w: session must be scheduled in the future", ErrValidation)
	}

	mentor, err := c.mentorRepo.GetByID(ctx, mentorProfileID)
	if err != nil {
		c.logger.Error("Mentor lookup failed during conflict check",
			zap.Int64("mentor_profile_id", mentorProfileID),
			zap.Error(err))
		return false, nil
	}
	if mentor == nil || !mentor.IsAvailable {
		return false, nil
	}

	window := time.Duration(durationMinutes) * time.Minute
	from := proposedStart.Add(-window)
	to := proposedStart.Add(window)

	count, err := c.sessionRepo.CountActiveInWindow(ctx, mentorProfileID, from, to)
	if err != nil {
		return false, fmt.Errorf("check window: %w", err)
	}

	return count > 0, nil
}
