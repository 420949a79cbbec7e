package app

import (
	"context"
	"time"

	"github.com/hiredvalley/mentorbooking/internal/service"
	"go.uber.org/zap"
)

// Scheduler управляет фоновыми задачами: напоминания о сессиях
// и reconciler отложенных платёжных операций
type Scheduler struct {
	bookingService *service.BookingService
	escrowService  *service.EscrowService
	logger         *zap.Logger
	stopChan       chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(bookingService *service.BookingService, escrowService *service.EscrowService, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		bookingService: bookingService,
		escrowService:  escrowService,
		logger:         logger,
		stopChan:       make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler")

	go s.runReminderTask(ctx)
	go s.runPaymentReconcileTask(ctx)
}

// Stop останавливает фоновые задачи
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
}

// runReminderTask периодически рассылает напоминания о предстоящих сессиях
func (s *Scheduler) runReminderTask(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.bookingService.SendUpcomingReminders(ctx); err != nil {
				s.logger.Error("Failed to send session reminders", zap.Error(err))
			}
		case <-s.stopChan:
			s.logger.Info("Reminder task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reminder task cancelled")
			return
		}
	}
}

// runPaymentReconcileTask догоняет платёжные операции, упавшие на best-effort путях
func (s *Scheduler) runPaymentReconcileTask(ctx context.Context) {
	// Первый прогон сразу при старте: в очереди могли остаться задачи с прошлого запуска
	s.escrowService.RunPendingTasks(ctx)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.escrowService.RunPendingTasks(ctx)
		case <-s.stopChan:
			s.logger.Info("Payment reconcile task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Payment reconcile task cancelled")
			return
		}
	}
}
