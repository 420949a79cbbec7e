package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hiredvalley/mentorbooking/internal/model"
	"go.uber.org/zap"
)

const (
	mentorUserID = int64(1)
	menteeUserID = int64(2)
)

type bookingFixture struct {
	store    *fakeStore
	escrow   *fakeEscrow
	notifier *fakeNotifier
	svc      *BookingService
}

func newBookingFixture() *bookingFixture {
	store := newFakeStore()
	escrow := &fakeEscrow{}
	notifier := &fakeNotifier{}
	logger := zap.NewNop()

	sessions := fakeSessionStore{store}
	mentors := fakeMentorStore{store}
	checker := NewConflictChecker(mentors, sessions, logger)

	svc := NewBookingService(sessions, mentors, store, store, store, checker, escrow, notifier, "usd", logger)

	stripeAccount := "acct_mentor"
	store.users[mentorUserID] = &model.User{
		ID:                mentorUserID,
		Email:             "mentor@example.com",
		PreferredCurrency: "usd",
		StripeAccountID:   &stripeAccount,
		PayoutsEnabled:    true,
	}
	store.users[menteeUserID] = &model.User{
		ID:                menteeUserID,
		Email:             "mentee@example.com",
		PreferredCurrency: "eur",
	}
	store.mentors[1] = &model.MentorProfile{
		ID:          1,
		UserID:      mentorUserID,
		HourlyRate:  100,
		Currency:    "usd",
		IsAvailable: true,
		Rating:      4.0,
		ReviewCount: 2,
	}

	return &bookingFixture{store: store, escrow: escrow, notifier: notifier, svc: svc}
}

func (f *bookingFixture) seedSession(status model.SessionStatus) *model.Session {
	intent := "pi_seed"
	session := &model.Session{
		MentorProfileID: 1,
		MenteeID:        menteeUserID,
		ScheduledAt:     time.Now().Add(48 * time.Hour),
		DurationMinutes: 60,
		Status:          status,
		Currency:        "usd",
		Amount:          100,
		PlatformFee:     20,
		MentorPayout:    80,
		PaymentStatus:   model.PaymentStatusPending,
		PaymentIntentID: &intent,
	}
	_ = f.store.CreateSession(context.Background(), session)
	return session
}

func validInput() RequestSessionInput {
	return RequestSessionInput{
		MentorProfileID: 1,
		ScheduledAt:     time.Now().Add(48 * time.Hour),
		DurationMinutes: 60,
		Note:            "разбор резюме",
	}
}

func TestRequestSession(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	res, err := f.svc.RequestSession(ctx, menteeUserID, validInput())
	if err != nil {
		t.Fatalf("RequestSession() error = %v", err)
	}

	session := res.Session
	if session.Status != model.SessionStatusRequested {
		t.Errorf("status = %s, want requested", session.Status)
	}
	if session.Amount != 100 || session.PlatformFee != 20 || session.MentorPayout != 80 {
		t.Errorf("amounts = (%v, %v, %v), want (100, 20, 80)",
			session.Amount, session.PlatformFee, session.MentorPayout)
	}
	if session.Currency != "eur" {
		t.Errorf("currency = %s, want mentee preferred eur", session.Currency)
	}
	if session.PaymentIntentID == nil || *session.PaymentIntentID != "pi_test" {
		t.Errorf("payment intent not stored on session")
	}
	if res.ClientSecret != "secret_test" {
		t.Errorf("client secret = %q, want secret_test", res.ClientSecret)
	}

	if len(f.store.events) != 1 || f.store.events[0].Action != model.ActionRequested {
		t.Errorf("expected single requested event, got %+v", f.store.events)
	}

	sent := f.notifier.sent()
	if len(sent) != 1 || sent[0].UserID != mentorUserID || sent[0].Type != model.NotificationSessionRequested {
		t.Errorf("mentor notification missing, got %+v", sent)
	}
}

func TestRequestSessionValidation(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*RequestSessionInput)
		mentee  int64
		wantErr error
	}{
		{"zero mentor id", func(in *RequestSessionInput) { in.MentorProfileID = 0 }, menteeUserID, ErrValidation},
		{"zero duration", func(in *RequestSessionInput) { in.DurationMinutes = 0 }, menteeUserID, ErrValidation},
		{"past start", func(in *RequestSessionInput) { in.ScheduledAt = time.Now().Add(-time.Hour) }, menteeUserID, ErrValidation},
		{"unknown mentor", func(in *RequestSessionInput) { in.MentorProfileID = 999 }, menteeUserID, ErrNotFound},
		{"self booking", func(in *RequestSessionInput) {}, mentorUserID, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := f.svc.RequestSession(ctx, tt.mentee, input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestSessionMentorUnavailable(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	f.store.mentors[1].IsAvailable = false
	if _, err := f.svc.RequestSession(ctx, menteeUserID, validInput()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unavailable mentor: error = %v, want ErrUnavailable", err)
	}

	f.store.mentors[1].IsAvailable = true
	f.store.mentors[1].HourlyRate = 0
	if _, err := f.svc.RequestSession(ctx, menteeUserID, validInput()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("zero rate: error = %v, want ErrUnavailable", err)
	}

	f.store.mentors[1].HourlyRate = 100
	f.store.users[mentorUserID].PayoutsEnabled = false
	if _, err := f.svc.RequestSession(ctx, menteeUserID, validInput()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("payouts disabled: error = %v, want ErrUnavailable", err)
	}
}

func TestRequestSessionConflict(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	existing := f.seedSession(model.SessionStatusConfirmed)

	input := validInput()
	input.ScheduledAt = existing.ScheduledAt.Add(30 * time.Minute)
	if _, err := f.svc.RequestSession(ctx, menteeUserID, input); !errors.Is(err, ErrConflict) {
		t.Errorf("overlapping window: error = %v, want ErrConflict", err)
	}

	input.ScheduledAt = existing.ScheduledAt.Add(2 * time.Hour)
	if _, err := f.svc.RequestSession(ctx, menteeUserID, input); err != nil {
		t.Errorf("free window: error = %v, want nil", err)
	}
}

func TestRequestSessionHoldFailure(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	f.escrow.CreateHoldFunc = func(ctx context.Context, params HoldParams) (*HoldResult, error) {
		return nil, errors.New("stripe is down")
	}

	_, err := f.svc.RequestSession(ctx, menteeUserID, validInput())
	if err == nil {
		t.Fatal("expected error when hold creation fails")
	}

	// Сессия не должна держать окно ментора
	session := f.store.sessions[1]
	if session == nil {
		t.Fatal("session row must survive for audit")
	}
	if session.Status != model.SessionStatusCanceled {
		t.Errorf("status = %s, want canceled", session.Status)
	}
	if session.PaymentStatus != model.PaymentStatusCanceled {
		t.Errorf("payment status = %s, want canceled", session.PaymentStatus)
	}

	found := false
	for _, e := range f.store.events {
		if e.Action == model.ActionPaymentFailure {
			found = true
		}
	}
	if !found {
		t.Error("payment failure event not recorded")
	}
}

func TestRespondToSessionAccept(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusRequested)

	updated, err := f.svc.RespondToSession(ctx, session.ID, mentorUserID, true, "жду вас")
	if err != nil {
		t.Fatalf("RespondToSession() error = %v", err)
	}
	if updated.Status != model.SessionStatusConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
	if len(f.escrow.cancelCalls) != 0 {
		t.Error("accept must not touch the escrow hold")
	}

	sent := f.notifier.sent()
	if len(sent) != 1 || sent[0].UserID != menteeUserID || sent[0].Type != model.NotificationSessionConfirmed {
		t.Errorf("mentee confirmation notification missing, got %+v", sent)
	}
}

func TestRespondToSessionDecline(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusRequested)

	updated, err := f.svc.RespondToSession(ctx, session.ID, mentorUserID, false, "занят")
	if err != nil {
		t.Fatalf("RespondToSession() error = %v", err)
	}
	if updated.Status != model.SessionStatusCanceled {
		t.Errorf("status = %s, want canceled", updated.Status)
	}

	// Отклонение освобождает hold
	if len(f.escrow.cancelCalls) != 1 || f.escrow.cancelCalls[0] != *session.PaymentIntentID {
		t.Errorf("hold not released, cancel calls: %v", f.escrow.cancelCalls)
	}
	if updated.PaymentStatus != model.PaymentStatusCanceled {
		t.Errorf("payment status = %s, want canceled", updated.PaymentStatus)
	}

	sent := f.notifier.sent()
	if len(sent) != 1 || sent[0].Type != model.NotificationSessionDeclined {
		t.Errorf("decline notification missing, got %+v", sent)
	}
}

func TestRespondToSessionAuthorization(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusRequested)

	if _, err := f.svc.RespondToSession(ctx, session.ID, menteeUserID, true, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("mentee responding: error = %v, want ErrUnauthorized", err)
	}

	confirmed := f.seedSession(model.SessionStatusConfirmed)
	if _, err := f.svc.RespondToSession(ctx, confirmed.ID, mentorUserID, true, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("responding to confirmed: error = %v, want ErrInvalidState", err)
	}

	if _, err := f.svc.RespondToSession(ctx, 999, mentorUserID, true, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown session: error = %v, want ErrNotFound", err)
	}
}

func TestCancelSession(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusConfirmed)

	updated, err := f.svc.CancelSession(ctx, session.ID, menteeUserID, "не смогу")
	if err != nil {
		t.Fatalf("CancelSession() error = %v", err)
	}
	if updated.Status != model.SessionStatusCanceled {
		t.Errorf("status = %s, want canceled", updated.Status)
	}
	if len(f.escrow.cancelCalls) != 1 {
		t.Errorf("hold not released, cancel calls: %v", f.escrow.cancelCalls)
	}

	// Уведомляется вторая сторона
	sent := f.notifier.sent()
	if len(sent) != 1 || sent[0].UserID != mentorUserID || sent[0].Type != model.NotificationSessionCanceled {
		t.Errorf("counterparty notification missing, got %+v", sent)
	}
}

func TestCancelSessionTerminalStates(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	completed := f.seedSession(model.SessionStatusCompleted)
	if _, err := f.svc.CancelSession(ctx, completed.ID, menteeUserID, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("cancel completed: error = %v, want ErrInvalidState", err)
	}

	canceled := f.seedSession(model.SessionStatusCanceled)
	if _, err := f.svc.CancelSession(ctx, canceled.ID, menteeUserID, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("cancel canceled: error = %v, want ErrInvalidState", err)
	}

	requested := f.seedSession(model.SessionStatusRequested)
	if _, err := f.svc.CancelSession(ctx, requested.ID, int64(999), ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("cancel by stranger: error = %v, want ErrUnauthorized", err)
	}
}

func TestCancelSessionAfterCaptureRefunds(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusConfirmed)

	f.escrow.CancelFunc = func(ctx context.Context, intentID, reason string) (model.EscrowStatus, error) {
		return model.EscrowStatusRefunded, nil
	}

	updated, err := f.svc.CancelSession(ctx, session.ID, menteeUserID, "перенос")
	if err != nil {
		t.Fatalf("CancelSession() error = %v", err)
	}
	if updated.PaymentStatus != model.PaymentStatusRefunded {
		t.Errorf("payment status = %s, want refunded", updated.PaymentStatus)
	}
}

func TestCancelSessionEscrowFailureDeferred(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusConfirmed)

	f.escrow.CancelFunc = func(ctx context.Context, intentID, reason string) (model.EscrowStatus, error) {
		return "", errors.New("provider timeout")
	}

	// Best-effort: отмена записана, упавший вызов уходит в reconciler
	updated, err := f.svc.CancelSession(ctx, session.ID, menteeUserID, "не смогу")
	if err != nil {
		t.Fatalf("CancelSession() error = %v, want nil (best-effort)", err)
	}
	if updated.Status != model.SessionStatusCanceled {
		t.Errorf("status = %s, want canceled", updated.Status)
	}

	tasks := f.store.pendingTasks()
	if len(tasks) != 1 || tasks[0].Operation != model.PaymentOpCancel {
		t.Errorf("expected one pending cancel task, got %+v", tasks)
	}
}

func TestCompleteSession(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusConfirmed)

	updated, err := f.svc.CompleteSession(ctx, session.ID, mentorUserID, "всё прошло хорошо")
	if err != nil {
		t.Fatalf("CompleteSession() error = %v", err)
	}
	if updated.Status != model.SessionStatusCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	if len(f.escrow.captureCalls) != 1 || f.escrow.captureCalls[0] != *session.PaymentIntentID {
		t.Errorf("capture not called, calls: %v", f.escrow.captureCalls)
	}
	if updated.PaymentStatus != model.PaymentStatusCaptured {
		t.Errorf("payment status = %s, want captured", updated.PaymentStatus)
	}
	if f.store.mentors[1].SessionCount != 1 {
		t.Errorf("mentor session count = %d, want 1", f.store.mentors[1].SessionCount)
	}

	sent := f.notifier.sent()
	if len(sent) != 1 || sent[0].UserID != menteeUserID || sent[0].Type != model.NotificationSessionCompleted {
		t.Errorf("mentee notification missing, got %+v", sent)
	}
}

func TestCompleteSessionTwice(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusConfirmed)

	if _, err := f.svc.CompleteSession(ctx, session.ID, mentorUserID, ""); err != nil {
		t.Fatalf("first complete: error = %v", err)
	}
	if _, err := f.svc.CompleteSession(ctx, session.ID, mentorUserID, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second complete: error = %v, want ErrInvalidState", err)
	}

	// Счётчик не инкрементируется повторно
	if f.store.incrementCalls != 1 {
		t.Errorf("increment calls = %d, want 1", f.store.incrementCalls)
	}
}

func TestCompleteSessionAuthorization(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	confirmed := f.seedSession(model.SessionStatusConfirmed)
	if _, err := f.svc.CompleteSession(ctx, confirmed.ID, menteeUserID, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("mentee completing: error = %v, want ErrUnauthorized", err)
	}

	requested := f.seedSession(model.SessionStatusRequested)
	if _, err := f.svc.CompleteSession(ctx, requested.ID, mentorUserID, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("completing requested: error = %v, want ErrInvalidState", err)
	}
}

func TestCompleteSessionCaptureFailureDeferred(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusConfirmed)

	f.escrow.CaptureFunc = func(ctx context.Context, intentID string) (float64, error) {
		return 0, errors.New("provider timeout")
	}

	updated, err := f.svc.CompleteSession(ctx, session.ID, mentorUserID, "")
	if err != nil {
		t.Fatalf("CompleteSession() error = %v, want nil (best-effort)", err)
	}
	if updated.Status != model.SessionStatusCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	if updated.PaymentStatus != model.PaymentStatusPending {
		t.Errorf("payment status = %s, want pending until reconciled", updated.PaymentStatus)
	}

	tasks := f.store.pendingTasks()
	if len(tasks) != 1 || tasks[0].Operation != model.PaymentOpCapture {
		t.Errorf("expected one pending capture task, got %+v", tasks)
	}
}

func TestRateSession(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusCompleted)

	updated, err := f.svc.RateSession(ctx, session.ID, menteeUserID, 5, "отличный разбор")
	if err != nil {
		t.Fatalf("RateSession() error = %v", err)
	}
	if updated.Rating == nil || *updated.Rating != 5 {
		t.Errorf("session rating not stored")
	}

	// Скользящее среднее: (4.0*2 + 5) / 3
	mentor := f.store.mentors[1]
	if math.Abs(mentor.Rating-13.0/3.0) > 1e-9 {
		t.Errorf("mentor rating = %v, want %v", mentor.Rating, 13.0/3.0)
	}
	if mentor.ReviewCount != 3 {
		t.Errorf("review count = %d, want 3", mentor.ReviewCount)
	}

	// Оценка не рассылает уведомлений
	if sent := f.notifier.sent(); len(sent) != 0 {
		t.Errorf("rating must not notify, got %+v", sent)
	}
}

func TestRateSessionValidation(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusCompleted)

	for _, rating := range []int{0, 6, -1} {
		if _, err := f.svc.RateSession(ctx, session.ID, menteeUserID, rating, ""); !errors.Is(err, ErrValidation) {
			t.Errorf("rating %d: error = %v, want ErrValidation", rating, err)
		}
	}

	if _, err := f.svc.RateSession(ctx, session.ID, mentorUserID, 5, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("mentor rating own session: error = %v, want ErrUnauthorized", err)
	}

	confirmed := f.seedSession(model.SessionStatusConfirmed)
	if _, err := f.svc.RateSession(ctx, confirmed.ID, menteeUserID, 5, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("rating confirmed session: error = %v, want ErrInvalidState", err)
	}
}

func TestGetSessionHistory(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	session := f.seedSession(model.SessionStatusConfirmed)
	f.store.events = append(f.store.events, &model.SessionEvent{
		ID: 1, SessionID: session.ID, ActorID: menteeUserID, Action: model.ActionRequested,
	})

	events, err := f.svc.GetSessionHistory(ctx, session.ID, menteeUserID)
	if err != nil {
		t.Fatalf("GetSessionHistory() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}

	if _, err := f.svc.GetSessionHistory(ctx, session.ID, int64(999)); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stranger reading history: error = %v, want ErrUnauthorized", err)
	}
}

func TestSendUpcomingReminders(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	soon := f.seedSession(model.SessionStatusConfirmed)
	soon.ScheduledAt = time.Now().Add(30 * time.Minute)

	later := f.seedSession(model.SessionStatusConfirmed)
	later.ScheduledAt = time.Now().Add(3 * time.Hour)

	if err := f.svc.SendUpcomingReminders(ctx); err != nil {
		t.Fatalf("SendUpcomingReminders() error = %v", err)
	}

	// Обе стороны ближайшей сессии, дальняя не трогается
	sent := f.notifier.sent()
	if len(sent) != 2 {
		t.Fatalf("notifications = %d, want 2, got %+v", len(sent), sent)
	}
	for _, n := range sent {
		if n.Type != model.NotificationSessionReminder {
			t.Errorf("notification type = %s, want reminder", n.Type)
		}
	}
	if !soon.ReminderSent {
		t.Error("reminder flag not set on the upcoming session")
	}
	if later.ReminderSent {
		t.Error("reminder flag set on a session outside the window")
	}

	// Повторный прогон не дублирует напоминания
	if err := f.svc.SendUpcomingReminders(ctx); err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if len(f.notifier.sent()) != 2 {
		t.Error("reminders sent twice for the same session")
	}
}
