package service

import (
	"context"
	"sync"
	"time"

	"github.com/hiredvalley/mentorbooking/internal/model"
)

// fakeStore in-memory реализация всех хранилищ для тестов сервисов
type fakeStore struct {
	mu sync.Mutex

	users    map[int64]*model.User
	mentors  map[int64]*model.MentorProfile
	sessions map[int64]*model.Session
	events   []*model.SessionEvent
	tasks    []*model.PaymentTask

	nextSessionID  int64
	incrementCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[int64]*model.User),
		mentors:       make(map[int64]*model.MentorProfile),
		sessions:      make(map[int64]*model.Session),
		nextSessionID: 1,
	}
}

// UserStore

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

// MentorStore

func (f *fakeStore) Create(ctx context.Context, mentor *model.MentorProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mentor.ID = int64(len(f.mentors) + 1)
	f.mentors[mentor.ID] = mentor
	return nil
}

func (f *fakeStore) GetMentorByID(ctx context.Context, id int64) (*model.MentorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mentors[id], nil
}

func (f *fakeStore) GetByUserID(ctx context.Context, userID int64) (*model.MentorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, mentor := range f.mentors {
		if mentor.UserID == userID {
			return mentor, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListAvailable(ctx context.Context) ([]*model.MentorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.MentorProfile
	for _, mentor := range f.mentors {
		if mentor.IsAvailable {
			out = append(out, mentor)
		}
	}
	return out, nil
}

func (f *fakeStore) Update(ctx context.Context, mentor *model.MentorProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentors[mentor.ID] = mentor
	return nil
}

func (f *fakeStore) SetAvailability(ctx context.Context, id int64, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mentor, ok := f.mentors[id]; ok {
		mentor.IsAvailable = available
	}
	return nil
}

func (f *fakeStore) IncrementSessionCount(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementCalls++
	if mentor, ok := f.mentors[id]; ok {
		mentor.SessionCount++
	}
	return nil
}

func (f *fakeStore) ApplyRating(ctx context.Context, id int64, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	mentor, ok := f.mentors[id]
	if !ok {
		return nil
	}
	mentor.Rating = (mentor.Rating*float64(mentor.ReviewCount) + float64(rating)) / float64(mentor.ReviewCount+1)
	mentor.ReviewCount++
	return nil
}

// SessionStore

func (f *fakeStore) CreateSession(ctx context.Context, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.ID = f.nextSessionID
	f.nextSessionID++
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeStore) GetSessionByID(ctx context.Context, id int64) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id], nil
}

func (f *fakeStore) CountActiveInWindow(ctx context.Context, mentorProfileID int64, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, s := range f.sessions {
		if s.MentorProfileID != mentorProfileID {
			continue
		}
		if s.Status != model.SessionStatusRequested && s.Status != model.SessionStatusConfirmed {
			continue
		}
		if !s.ScheduledAt.Before(from) && !s.ScheduledAt.After(to) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) UpdateStatusFrom(ctx context.Context, id int64, to model.SessionStatus, from ...model.SessionStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if session.Status == status {
			session.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) SetPaymentIntent(ctx context.Context, id int64, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[id]; ok {
		session.PaymentIntentID = &intentID
	}
	return nil
}

func (f *fakeStore) SetPaymentStatus(ctx context.Context, id int64, status model.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[id]; ok {
		session.PaymentStatus = status
	}
	return nil
}

func (f *fakeStore) SetRating(ctx context.Context, id int64, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[id]; ok {
		session.Rating = &rating
	}
	return nil
}

func (f *fakeStore) GetByMenteeID(ctx context.Context, menteeID int64) ([]*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Session
	for _, s := range f.sessions {
		if s.MenteeID == menteeID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetByMentorProfileID(ctx context.Context, mentorProfileID int64) ([]*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Session
	for _, s := range f.sessions {
		if s.MentorProfileID == mentorProfileID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUpcomingUnreminded(ctx context.Context, deadline time.Time) ([]*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []*model.Session
	for _, s := range f.sessions {
		if s.Status == model.SessionStatusConfirmed && !s.ReminderSent &&
			s.ScheduledAt.After(now) && !s.ScheduledAt.After(deadline) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkReminderSent(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[id]; ok {
		session.ReminderSent = true
	}
	return nil
}

// EventStore

func (f *fakeStore) Append(ctx context.Context, event *model.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = int64(len(f.events) + 1)
	event.CreatedAt = time.Now()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) GetBySessionID(ctx context.Context, sessionID int64) ([]*model.SessionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.SessionEvent
	for _, e := range f.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// PaymentTaskStore

func (f *fakeStore) Enqueue(ctx context.Context, task *model.PaymentTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.ID = int64(len(f.tasks) + 1)
	task.Status = model.PaymentTaskPending
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeStore) GetPending(ctx context.Context, limit int) ([]*model.PaymentTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.PaymentTask
	for _, t := range f.tasks {
		if t.Status == model.PaymentTaskPending {
			out = append(out, t)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkDone(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			t.Status = model.PaymentTaskDone
		}
	}
	return nil
}

func (f *fakeStore) RecordFailure(ctx context.Context, id int64, lastError string, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			t.Attempts++
			t.LastError = lastError
			if t.Attempts >= maxAttempts {
				t.Status = model.PaymentTaskFailed
			}
		}
	}
	return nil
}

func (f *fakeStore) pendingTasks() []*model.PaymentTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.PaymentTask
	for _, t := range f.tasks {
		if t.Status == model.PaymentTaskPending {
			out = append(out, t)
		}
	}
	return out
}

// Адаптеры под несовпадающие имена методов интерфейсов:
// fakeStore реализует и MentorStore.GetByID, и SessionStore.GetByID через обёртки.

type fakeMentorStore struct{ *fakeStore }

func (f fakeMentorStore) GetByID(ctx context.Context, id int64) (*model.MentorProfile, error) {
	return f.GetMentorByID(ctx, id)
}

type fakeSessionStore struct{ *fakeStore }

func (f fakeSessionStore) Create(ctx context.Context, session *model.Session) error {
	return f.CreateSession(ctx, session)
}

func (f fakeSessionStore) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	return f.GetSessionByID(ctx, id)
}

// fakeEscrow мок эскроу-координатора с подменяемыми функциями
type fakeEscrow struct {
	mu sync.Mutex

	CreateHoldFunc func(ctx context.Context, params HoldParams) (*HoldResult, error)
	CaptureFunc    func(ctx context.Context, intentID string) (float64, error)
	CancelFunc     func(ctx context.Context, intentID, reason string) (model.EscrowStatus, error)

	captureCalls []string
	cancelCalls  []string
}

func (f *fakeEscrow) CreateHold(ctx context.Context, params HoldParams) (*HoldResult, error) {
	if f.CreateHoldFunc != nil {
		return f.CreateHoldFunc(ctx, params)
	}
	fee, _ := SplitAmount(params.Amount, params.FeeRate)
	return &HoldResult{IntentID: "pi_test", ClientSecret: "secret_test", PlatformFee: fee}, nil
}

func (f *fakeEscrow) Capture(ctx context.Context, intentID string) (float64, error) {
	f.mu.Lock()
	f.captureCalls = append(f.captureCalls, intentID)
	f.mu.Unlock()
	if f.CaptureFunc != nil {
		return f.CaptureFunc(ctx, intentID)
	}
	return 0, nil
}

func (f *fakeEscrow) Cancel(ctx context.Context, intentID, reason string) (model.EscrowStatus, error) {
	f.mu.Lock()
	f.cancelCalls = append(f.cancelCalls, intentID)
	f.mu.Unlock()
	if f.CancelFunc != nil {
		return f.CancelFunc(ctx, intentID, reason)
	}
	return model.EscrowStatusCanceled, nil
}

// fakeNotifier записывает отправленные уведомления
type fakeNotifier struct {
	mu         sync.Mutex
	dispatched []dispatchedNotification
}

type dispatchedNotification struct {
	UserID int64
	Type   model.NotificationType
}

func (f *fakeNotifier) Dispatch(userID int64, notificationType model.NotificationType, title, message, link string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, dispatchedNotification{UserID: userID, Type: notificationType})
}

func (f *fakeNotifier) sent() []dispatchedNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatchedNotification(nil), f.dispatched...)
}
