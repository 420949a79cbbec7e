package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hiredvalley/mentorbooking/internal/metrics"
	"github.com/hiredvalley/mentorbooking/internal/model"
	"github.com/hiredvalley/mentorbooking/internal/repository/base"
	"go.uber.org/zap"
)

// BookingService владеет машиной состояний менторской сессии:
// requested -> confirmed | canceled; confirmed -> completed | canceled.
// completed и canceled - терминальные.
type BookingService struct {
	sessionRepo  SessionStore
	mentorRepo   MentorStore
	userRepo     UserStore
	eventRepo    EventStore
	taskRepo     PaymentTaskStore
	checker      *ConflictChecker
	escrow       EscrowCoordinator
	notifier     Notifier
	baseCurrency string
	logger       *zap.Logger
	now          func() time.Time
}

func NewBookingService(
	sessionRepo SessionStore,
	mentorRepo MentorStore,
	userRepo UserStore,
	eventRepo EventStore,
	taskRepo PaymentTaskStore,
	checker *ConflictChecker,
	escrow EscrowCoordinator,
	notifier Notifier,
	baseCurrency string,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		sessionRepo:  sessionRepo,
		mentorRepo:   mentorRepo,
		userRepo:     userRepo,
		eventRepo:    eventRepo,
		taskRepo:     taskRepo,
		checker:      checker,
		escrow:       escrow,
		notifier:     notifier,
		baseCurrency: baseCurrency,
		logger:       logger,
		now:          time.Now,
	}
}

type RequestSessionInput struct {
	MentorProfileID int64     `json:"mentor_profile_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Note            string    `json:"note"`
}

// RequestedSession сессия плюс client secret для подтверждения оплаты на клиенте
type RequestedSession struct {
	Session      *model.Session `json:"session"`
	ClientSecret string         `json:"client_secret"`
}

// RequestSession создаёт запрос на сессию: проверяет доступность ментора и
// отсутствие пересечений, считает суммы, создаёт escrow hold и уведомляет ментора
func (s *BookingService) RequestSession(ctx context.Context, menteeID int64, input RequestSessionInput) (*RequestedSession, error) {
	if input.MentorProfileID == 0 {
		return nil, fmt.Errorf("%w: mentor profile id is required", ErrValidation)
	}
	if input.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if !input.ScheduledAt.After(s.now()) {
		return nil, fmt.Errorf("%w: session must be scheduled in the future", ErrValidation)
	}

	mentor, err := s.mentorRepo.GetByID(ctx, input.MentorProfileID)
	if err != nil {
		return nil, fmt.Errorf("get mentor: %w", err)
	}
	if mentor == nil {
		return nil, fmt.Errorf("%w: mentor profile", ErrNotFound)
	}
	if !mentor.IsAvailable {
		return nil, fmt.Errorf("%w: mentor is not accepting sessions", ErrUnavailable)
	}
	if mentor.HourlyRate <= 0 {
		return nil, fmt.Errorf("%w: mentor has no hourly rate configured", ErrUnavailable)
	}
	if mentor.UserID == menteeID {
		return nil, fmt.Errorf("%w: cannot book a session with yourself", ErrValidation)
	}

	mentorUser, err := s.userRepo.GetByID(ctx, mentor.UserID)
	if err != nil {
		return nil, fmt.Errorf("get mentor user: %w", err)
	}
	if mentorUser == nil || mentorUser.StripeAccountID == nil || !mentorUser.PayoutsEnabled {
		return nil, fmt.Errorf("%w: mentor has no payment account configured", ErrUnavailable)
	}

	conflict, err := s.checker.HasConflict(ctx, input.MentorProfileID, input.ScheduledAt, input.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, fmt.Errorf("%w: mentor already has a session in this window", ErrConflict)
	}

	mentee, err := s.userRepo.GetByID(ctx, menteeID)
	if err != nil {
		return nil, fmt.Errorf("get mentee: %w", err)
	}
	if mentee == nil {
		return nil, fmt.Errorf("%w: mentee", ErrNotFound)
	}

	currency := ResolveCurrency(mentee.PreferredCurrency, s.baseCurrency)
	amount := SessionAmount(mentor.HourlyRate, input.DurationMinutes)
	fee, payout := SplitAmount(amount, MentorSessionFeeRate)

	session := &model.Session{
		MentorProfileID: input.MentorProfileID,
		MenteeID:        menteeID,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
		Status:          model.SessionStatusRequested,
		Note:            input.Note,
		Currency:        currency,
		Amount:          amount,
		PlatformFee:     fee,
		MentorPayout:    payout,
		PaymentStatus:   model.PaymentStatusPending,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		// Проигравший конкурентный запрос упирается в exclusion constraint
		if base.IsExclusionViolation(err) {
			return nil, fmt.Errorf("%w: mentor already has a session in this window", ErrConflict)
		}
		return nil, err
	}

	hold, err := s.escrow.CreateHold(ctx, HoldParams{
		PayerID:     menteeID,
		PayeeID:     mentor.UserID,
		Amount:      amount,
		FeeRate:     MentorSessionFeeRate,
		Currency:    currency,
		Description: fmt.Sprintf("Mentor session #%d", session.ID),
		Metadata: map[string]string{
			"session_id":        fmt.Sprintf("%d", session.ID),
			"mentor_profile_id": fmt.Sprintf("%d", input.MentorProfileID),
		},
	})
	if err != nil {
		// Hold не создался - сессия не должна держать окно ментора
		s.voidSession(ctx, session, menteeID, err)
		return nil, fmt.Errorf("create escrow hold: %w", err)
	}

	if err := s.sessionRepo.SetPaymentIntent(ctx, session.ID, hold.IntentID); err != nil {
		return nil, fmt.Errorf("store payment intent: %w", err)
	}
	session.PaymentIntentID = &hold.IntentID

	s.appendEvent(ctx, session.ID, menteeID, model.ActionRequested, input.Note)

	metrics.SessionsRequested.Inc()
	s.logger.Info("Session requested",
		zap.Int64("session_id", session.ID),
		zap.Int64("mentee_id", menteeID),
		zap.Int64("mentor_profile_id", input.MentorProfileID),
		zap.Time("scheduled_at", input.ScheduledAt),
		zap.Float64("amount", amount),
		zap.String("currency", currency),
	)

	s.notifier.Dispatch(mentor.UserID, model.NotificationSessionRequested,
		"Новый запрос на сессию",
		fmt.Sprintf("Запрошена сессия на %s, длительность %d мин.",
			input.ScheduledAt.Format("02.01.2006 15:04"), input.DurationMinutes),
		fmt.Sprintf("/sessions/%d", session.ID),
	)

	return &RequestedSession{Session: session, ClientSecret: hold.ClientSecret}, nil
}

// RespondToSession ответ ментора на запрос: принять или отклонить.
// Допустимо только из requested и только владельцем профиля.
func (s *BookingService) RespondToSession(ctx context.Context, sessionID, actingUserID int64, accept bool, message string) (*model.Session, error) {
	session, mentor, err := s.loadSessionWithMentor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if mentor.UserID != actingUserID {
		return nil, fmt.Errorf("%w: only the mentor can respond to this request", ErrUnauthorized)
	}
	if session.Status != model.SessionStatusRequested {
		return nil, fmt.Errorf("%w: session is %s, expected requested", ErrInvalidState, session.Status)
	}

	target := model.SessionStatusConfirmed
	action := model.ActionConfirmed
	notificationType := model.NotificationSessionConfirmed
	title := "Сессия подтверждена"
	if !accept {
		target = model.SessionStatusCanceled
		action = model.ActionDeclined
		notificationType = model.NotificationSessionDeclined
		title = "Сессия отклонена"
	}

	ok, err := s.sessionRepo.UpdateStatusFrom(ctx, sessionID, target, model.SessionStatusRequested)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: session is no longer requested", ErrInvalidState)
	}
	session.Status = target

	// Отклонённый запрос освобождает hold
	if !accept {
		s.closeEscrow(ctx, session, actingUserID, "mentor declined the request")
	}

	s.appendEvent(ctx, sessionID, actingUserID, action, message)

	metrics.SessionTransitions.WithLabelValues(string(target)).Inc()
	s.logger.Info("Mentor responded to session",
		zap.Int64("session_id", sessionID),
		zap.Int64("mentor_user_id", actingUserID),
		zap.Bool("accepted", accept),
	)

	body := fmt.Sprintf("Сессия %s.", session.ScheduledAt.Format("02.01.2006 15:04"))
	if message != "" {
		body += " Сообщение ментора: " + message
	}
	s.notifier.Dispatch(session.MenteeID, notificationType, title, body,
		fmt.Sprintf("/sessions/%d", sessionID))

	return session, nil
}

// CancelSession отменяет сессию. Допустимо из requested/confirmed,
// актор - ментор или менти сессии.
func (s *BookingService) CancelSession(ctx context.Context, sessionID, actingUserID int64, reason string) (*model.Session, error) {
	session, mentor, err := s.loadSessionWithMentor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	isMentor := mentor.UserID == actingUserID
	isMentee := session.MenteeID == actingUserID
	if !isMentor && !isMentee {
		return nil, fmt.Errorf("%w: only session participants can cancel", ErrUnauthorized)
	}

	if session.Status != model.SessionStatusRequested && session.Status != model.SessionStatusConfirmed {
		return nil, fmt.Errorf("%w: cannot cancel a %s session", ErrInvalidState, session.Status)
	}

	ok, err := s.sessionRepo.UpdateStatusFrom(ctx, sessionID, model.SessionStatusCanceled,
		model.SessionStatusRequested, model.SessionStatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: session is already closed", ErrInvalidState)
	}
	session.Status = model.SessionStatusCanceled

	s.closeEscrow(ctx, session, actingUserID, reason)

	s.appendEvent(ctx, sessionID, actingUserID, model.ActionCanceled, reason)

	metrics.SessionTransitions.WithLabelValues(string(model.SessionStatusCanceled)).Inc()
	s.logger.Info("Session canceled",
		zap.Int64("session_id", sessionID),
		zap.Int64("actor_id", actingUserID),
		zap.String("reason", reason),
	)

	// Уведомляем вторую сторону
	counterparty := session.MenteeID
	if isMentee {
		counterparty = mentor.UserID
	}
	body := fmt.Sprintf("Сессия %s отменена.", session.ScheduledAt.Format("02.01.2006 15:04"))
	if reason != "" {
		body += " Причина: " + reason
	}
	s.notifier.Dispatch(counterparty, model.NotificationSessionCanceled, "Сессия отменена", body,
		fmt.Sprintf("/sessions/%d", sessionID))

	return session, nil
}

// CompleteSession завершает подтверждённую сессию: списывает hold,
// увеличивает счётчик сессий ментора и просит менти оставить оценку
func (s *BookingService) CompleteSession(ctx context.Context, sessionID, actingUserID int64, notes string) (*model.Session, error) {
	session, mentor, err := s.loadSessionWithMentor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if mentor.UserID != actingUserID {
		return nil, fmt.Errorf("%w: only the mentor can complete the session", ErrUnauthorized)
	}
	if session.Status != model.SessionStatusConfirmed {
		return nil, fmt.Errorf("%w: session is %s, expected confirmed", ErrInvalidState, session.Status)
	}

	// CAS-переход защищает от двойного завершения и двойного инкремента счётчика
	ok, err := s.sessionRepo.UpdateStatusFrom(ctx, sessionID, model.SessionStatusCompleted,
		model.SessionStatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: session is no longer confirmed", ErrInvalidState)
	}
	session.Status = model.SessionStatusCompleted

	// Best-effort: переход записан, падение платёжного вызова уходит в reconciler
	if session.PaymentIntentID != nil {
		if _, err := s.escrow.Capture(ctx, *session.PaymentIntentID); err != nil {
			s.deferPaymentOp(ctx, session, model.PaymentOpCapture, "session completed", err)
		} else {
			s.setPaymentStatus(ctx, session, model.PaymentStatusCaptured)
		}
	}

	if err := s.mentorRepo.IncrementSessionCount(ctx, mentor.ID); err != nil {
		s.logger.Error("Failed to increment mentor session count",
			zap.Int64("mentor_profile_id", mentor.ID),
			zap.Error(err))
	}

	s.appendEvent(ctx, sessionID, actingUserID, model.ActionCompleted, notes)

	metrics.SessionTransitions.WithLabelValues(string(model.SessionStatusCompleted)).Inc()
	s.logger.Info("Session completed",
		zap.Int64("session_id", sessionID),
		zap.Int64("mentor_user_id", actingUserID),
	)

	s.notifier.Dispatch(session.MenteeID, model.NotificationSessionCompleted,
		"Сессия завершена",
		"Сессия завершена. Оставьте оценку ментору.",
		fmt.Sprintf("/sessions/%d/rate", sessionID))

	return session, nil
}

// RateSession оценка завершённой сессии менти: пересчитывает
// скользящее среднее ментора. Уведомление не отправляется.
func (s *BookingService) RateSession(ctx context.Context, sessionID, menteeID int64, rating int, feedback string) (*model.Session, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	session, mentor, err := s.loadSessionWithMentor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MenteeID != menteeID {
		return nil, fmt.Errorf("%w: only the mentee can rate the session", ErrUnauthorized)
	}
	if session.Status != model.SessionStatusCompleted {
		return nil, fmt.Errorf("%w: only completed sessions can be rated", ErrInvalidState)
	}

	if err := s.sessionRepo.SetRating(ctx, sessionID, rating); err != nil {
		return nil, err
	}
	session.Rating = &rating

	if err := s.mentorRepo.ApplyRating(ctx, mentor.ID, rating); err != nil {
		return nil, fmt.Errorf("apply rating: %w", err)
	}

	s.appendEvent(ctx, sessionID, menteeID, model.ActionRated,
		fmt.Sprintf("rating=%d %s", rating, feedback))

	s.logger.Info("Session rated",
		zap.Int64("session_id", sessionID),
		zap.Int64("mentee_id", menteeID),
		zap.Int("rating", rating),
	)

	return session, nil
}

// GetSessionsForMentee получает сессии менти
func (s *BookingService) GetSessionsForMentee(ctx context.Context, menteeID int64) ([]*model.Session, error) {
	return s.sessionRepo.GetByMenteeID(ctx, menteeID)
}

// GetSessionsForMentor получает сессии ментора по ID его пользователя
func (s *BookingService) GetSessionsForMentor(ctx context.Context, userID int64) ([]*model.Session, error) {
	mentor, err := s.mentorRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get mentor profile: %w", err)
	}
	if mentor == nil {
		return nil, fmt.Errorf("%w: mentor profile", ErrNotFound)
	}
	return s.sessionRepo.GetByMentorProfileID(ctx, mentor.ID)
}

// GetSessionHistory получает структурированную историю сессии
func (s *BookingService) GetSessionHistory(ctx context.Context, sessionID, actingUserID int64) ([]*model.SessionEvent, error) {
	session, mentor, err := s.loadSessionWithMentor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.MenteeID != actingUserID && mentor.UserID != actingUserID {
		return nil, fmt.Errorf("%w: only session participants can view history", ErrUnauthorized)
	}
	return s.eventRepo.GetBySessionID(ctx, sessionID)
}

// SendUpcomingReminders уведомляет стороны о подтверждённых сессиях,
// начинающихся в ближайший час. Вызывается фоновой задачей.
func (s *BookingService) SendUpcomingReminders(ctx context.Context) error {
	sessions, err := s.sessionRepo.GetUpcomingUnreminded(ctx, s.now().Add(time.Hour))
	if err != nil {
		return fmt.Errorf("get upcoming sessions: %w", err)
	}

	for _, session := range sessions {
		mentor, err := s.mentorRepo.GetByID(ctx, session.MentorProfileID)
		if err != nil || mentor == nil {
			continue
		}

		body := fmt.Sprintf("Сессия начнётся %s.", session.ScheduledAt.Format("02.01.2006 15:04"))
		link := fmt.Sprintf("/sessions/%d", session.ID)
		s.notifier.Dispatch(session.MenteeID, model.NotificationSessionReminder, "Напоминание о сессии", body, link)
		s.notifier.Dispatch(mentor.UserID, model.NotificationSessionReminder, "Напоминание о сессии", body, link)

		if err := s.sessionRepo.MarkReminderSent(ctx, session.ID); err != nil {
			s.logger.Error("Failed to mark reminder sent",
				zap.Int64("session_id", session.ID),
				zap.Error(err))
		}
	}

	return nil
}

func (s *BookingService) loadSessionWithMentor(ctx context.Context, sessionID int64) (*model.Session, *model.MentorProfile, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, fmt.Errorf("%w: session", ErrNotFound)
	}

	mentor, err := s.mentorRepo.GetByID(ctx, session.MentorProfileID)
	if err != nil {
		return nil, nil, err
	}
	if mentor == nil {
		return nil, nil, fmt.Errorf("%w: mentor profile", ErrNotFound)
	}

	return session, mentor, nil
}

// closeEscrow закрывает hold по best-effort политике: ошибка провайдера
// логируется и уходит в очередь reconciler-а, переход статуса не откатывается
func (s *BookingService) closeEscrow(ctx context.Context, session *model.Session, actorID int64, reason string) {
	if session.PaymentIntentID == nil {
		return
	}

	status, err := s.escrow.Cancel(ctx, *session.PaymentIntentID, reason)
	if err != nil {
		s.deferPaymentOp(ctx, session, model.PaymentOpCancel, reason, err)
		return
	}

	switch status {
	case model.EscrowStatusRefunded:
		s.setPaymentStatus(ctx, session, model.PaymentStatusRefunded)
	default:
		s.setPaymentStatus(ctx, session, model.PaymentStatusCanceled)
	}
}

// deferPaymentOp фиксирует упавший платёжный вызов для reconciler-а
func (s *BookingService) deferPaymentOp(ctx context.Context, session *model.Session, op model.PaymentOperation, reason string, cause error) {
	metrics.PaymentFailures.Inc()
	s.logger.Error("Payment provider call failed, deferring to reconciler",
		zap.Int64("session_id", session.ID),
		zap.String("operation", string(op)),
		zap.Error(cause))

	task := &model.PaymentTask{
		SessionID:       session.ID,
		PaymentIntentID: *session.PaymentIntentID,
		Operation:       op,
		Reason:          reason,
	}
	if err := s.taskRepo.Enqueue(ctx, task); err != nil {
		s.logger.Error("Failed to enqueue payment task",
			zap.Int64("session_id", session.ID),
			zap.Error(err))
	}

	s.appendEvent(ctx, session.ID, 0, model.ActionPaymentFailure,
		fmt.Sprintf("%s failed: %v", op, cause))
}

func (s *BookingService) setPaymentStatus(ctx context.Context, session *model.Session, status model.PaymentStatus) {
	if err := s.sessionRepo.SetPaymentStatus(ctx, session.ID, status); err != nil {
		s.logger.Error("Failed to update session payment status",
			zap.Int64("session_id", session.ID),
			zap.Error(err))
		return
	}
	session.PaymentStatus = status
}

func (s *BookingService) appendEvent(ctx context.Context, sessionID, actorID int64, action model.SessionAction, detail string) {
	event := &model.SessionEvent{
		SessionID: sessionID,
		ActorID:   actorID,
		Action:    action,
		Detail:    detail,
	}
	if err := s.eventRepo.Append(ctx, event); err != nil {
		s.logger.Error("Failed to append session event",
			zap.Int64("session_id", sessionID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// voidSession отменяет только что созданную сессию, когда hold не создался
func (s *BookingService) voidSession(ctx context.Context, session *model.Session, menteeID int64, cause error) {
	ok, err := s.sessionRepo.UpdateStatusFrom(ctx, session.ID, model.SessionStatusCanceled,
		model.SessionStatusRequested)
	if err != nil || !ok {
		s.logger.Error("Failed to void session after hold failure",
			zap.Int64("session_id", session.ID),
			zap.Error(err))
		return
	}
	session.Status = model.SessionStatusCanceled
	s.setPaymentStatus(ctx, session, model.PaymentStatusCanceled)
	s.appendEvent(ctx, session.ID, menteeID, model.ActionPaymentFailure,
		fmt.Sprintf("hold creation failed: %v", cause))
}
