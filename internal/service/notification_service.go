package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/hiredvalley/mentorbooking/internal/metrics"
	"github.com/hiredvalley/mentorbooking/internal/model"
	"go.uber.org/zap"
)

const dispatchTimeout = 10 * time.Second

// TelegramClient минимальный контракт push-канала. Реализуется *bot.Bot.
type TelegramClient interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// NotificationService рассылает уведомления по каналам: in-app запись всегда,
// телеграм-пуш - если у пользователя привязан чат. Ошибки доставки только логируются.
type NotificationService struct {
	notificationRepo NotificationStore
	userRepo         UserStore
	telegram         TelegramClient // может быть nil, если бот не сконфигурирован
	logger           *zap.Logger
}

func NewNotificationService(
	notificationRepo NotificationStore,
	userRepo UserStore,
	telegram TelegramClient,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		telegram:         telegram,
		logger:           logger,
	}
}

// Dispatch отправляет уведомление пользователю по всем каналам.
// Fire-and-forget: не блокирует вызывающего и ничего не возвращает,
// каналы работают параллельно на отвязанном контексте.
func (s *NotificationService) Dispatch(userID int64, notificationType model.NotificationType, title, message, link string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		notification := &model.Notification{
			UserID:  userID,
			Type:    notificationType,
			Title:   title,
			Message: message,
			Link:    link,
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.sendTelegram(ctx, userID, title, message)
		}()

		if err := s.notificationRepo.Create(ctx, notification); err != nil {
			s.logger.Error("Failed to persist in-app notification",
				zap.Int64("user_id", userID),
				zap.String("type", string(notificationType)),
				zap.Error(err))
		} else {
			metrics.NotificationsDispatched.WithLabelValues("inapp").Inc()
		}

		<-done
	}()
}

// GetForUser получает in-app уведомления пользователя
func (s *NotificationService) GetForUser(ctx context.Context, userID int64, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.notificationRepo.GetByUserID(ctx, userID, limit)
}

// MarkRead помечает уведомление прочитанным
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	if err := s.notificationRepo.MarkRead(ctx, id, userID); err != nil {
		return fmt.Errorf("%w: notification", ErrNotFound)
	}
	return nil
}

func (s *NotificationService) sendTelegram(ctx context.Context, userID int64, title, message string) {
	if s.telegram == nil {
		return
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil || user.TelegramChatID == nil {
		return
	}

	_, err = s.telegram.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *user.TelegramChatID,
		Text:   title + "\n\n" + message,
	})
	if err != nil {
		s.logger.Error("Failed to send telegram notification",
			zap.Int64("user_id", userID),
			zap.Int64("chat_id", *user.TelegramChatID),
			zap.Error(err))
		return
	}

	metrics.NotificationsDispatched.WithLabelValues("telegram").Inc()
}
