package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/hiredvalley/mentorbooking/internal/metrics"
	"github.com/hiredvalley/mentorbooking/internal/model"
	"github.com/hiredvalley/mentorbooking/internal/payment"
	"go.uber.org/zap"
)

// Максимум попыток reconciler-а на отложенную операцию,
// после чего задача уходит в failed и ждёт ручного разбора
const maxReconcileAttempts = 10

// EscrowService координирует hold-ы у платёжного провайдера:
// создать при бронировании, списать при завершении, отменить/вернуть при отмене
type EscrowService struct {
	escrowRepo EscrowStore
	userRepo   UserStore
	taskRepo   PaymentTaskStore
	provider   payment.Provider
	logger     *zap.Logger
}

func NewEscrowService(
	escrowRepo EscrowStore,
	userRepo UserStore,
	taskRepo PaymentTaskStore,
	provider payment.Provider,
	logger *zap.Logger,
) *EscrowService {
	return &EscrowService{
		escrowRepo: escrowRepo,
		userRepo:   userRepo,
		taskRepo:   taskRepo,
		provider:   provider,
		logger:     logger,
	}
}

// HoldParams параметры создания hold-а. FeeRate = 0 означает ставку по умолчанию.
type HoldParams struct {
	PayerID     int64
	PayeeID     int64
	Amount      float64
	FeeRate     float64
	Currency    string
	Description string
	Metadata    map[string]string
}

type HoldResult struct {
	IntentID     string
	ClientSecret string
	PlatformFee  float64
}

// CreateHold создаёт authorization-only hold с маршрутизацией выплаты
// на аккаунт получателя за вычетом комиссии платформы
func (s *EscrowService) CreateHold(ctx context.Context, params HoldParams) (*HoldResult, error) {
	payee, err := s.userRepo.GetByID(ctx, params.PayeeID)
	if err != nil {
		return nil, fmt.Errorf("get payee: %w", err)
	}
	if payee == nil {
		return nil, fmt.Errorf("%w: payee not found", ErrNotFound)
	}
	if payee.StripeAccountID == nil || !payee.PayoutsEnabled {
		return nil, fmt.Errorf("%w: payee has no verified payout account", ErrUnavailable)
	}

	rate := params.FeeRate
	if rate == 0 {
		rate = DefaultEscrowFeeRate
	}
	fee, _ := SplitAmount(params.Amount, rate)

	hold, err := s.provider.CreateHold(ctx, payment.HoldRequest{
		Amount:             params.Amount,
		PlatformFee:        fee,
		Currency:           params.Currency,
		DestinationAccount: *payee.StripeAccountID,
		Description:        params.Description,
		Metadata:           params.Metadata,
		IdempotencyKey:     uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("create hold: %w", err)
	}

	escrow := &model.EscrowPayment{
		PaymentIntentID: hold.IntentID,
		PayerID:         params.PayerID,
		PayeeID:         params.PayeeID,
		Amount:          params.Amount,
		PlatformFee:     fee,
		Currency:        params.Currency,
		Status:          model.EscrowStatusPending,
	}
	if err := s.escrowRepo.Create(ctx, escrow); err != nil {
		return nil, fmt.Errorf("persist escrow payment: %w", err)
	}

	s.logger.Info("Escrow hold created",
		zap.String("intent_id", hold.IntentID),
		zap.Int64("payer_id", params.PayerID),
		zap.Int64("payee_id", params.PayeeID),
		zap.Float64("amount", params.Amount),
		zap.Float64("platform_fee", fee),
		zap.String("currency", params.Currency),
	)

	return &HoldResult{
		IntentID:     hold.IntentID,
		ClientSecret: hold.ClientSecret,
		PlatformFee:  fee,
	}, nil
}

// Capture списывает hold. Допустим только из pending/authorized.
func (s *EscrowService) Capture(ctx context.Context, intentID string) (float64, error) {
	escrow, err := s.escrowRepo.GetByIntentID(ctx, intentID)
	if err != nil {
		return 0, fmt.Errorf("get escrow: %w", err)
	}
	if escrow == nil {
		return 0, fmt.Errorf("%w: escrow payment not found", ErrNotFound)
	}
	if escrow.Status != model.EscrowStatusPending && escrow.Status != model.EscrowStatusAuthorized {
		return 0, fmt.Errorf("%w: cannot capture escrow in status %s", ErrInvalidState, escrow.Status)
	}

	result, err := s.provider.Capture(ctx, intentID)
	if err != nil {
		return 0, fmt.Errorf("capture: %w", err)
	}

	if err := s.escrowRepo.MarkCaptured(ctx, intentID); err != nil {
		return 0, fmt.Errorf("mark captured: %w", err)
	}

	s.logger.Info("Escrow captured",
		zap.String("intent_id", intentID),
		zap.Float64("captured_amount", result.AmountCaptured),
	)

	return result.AmountCaptured, nil
}

// Cancel закрывает hold: после списания делает возврат (refunded),
// до списания отменяет авторизацию (canceled). Повторное закрытие отклоняется.
func (s *EscrowService) Cancel(ctx context.Context, intentID, reason string) (model.EscrowStatus, error) {
	escrow, err := s.escrowRepo.GetByIntentID(ctx, intentID)
	if err != nil {
		return "", fmt.Errorf("get escrow: %w", err)
	}
	if escrow == nil {
		return "", fmt.Errorf("%w: escrow payment not found", ErrNotFound)
	}

	switch escrow.Status {
	case model.EscrowStatusCanceled, model.EscrowStatusRefunded:
		return "", fmt.Errorf("%w: escrow already closed as %s", ErrInvalidState, escrow.Status)

	case model.EscrowStatusCaptured:
		if err := s.provider.Refund(ctx, intentID, reason); err != nil {
			return "", fmt.Errorf("refund: %w", err)
		}
		if err := s.escrowRepo.MarkClosed(ctx, intentID, model.EscrowStatusRefunded); err != nil {
			return "", fmt.Errorf("mark refunded: %w", err)
		}

		s.logger.Info("Escrow refunded",
			zap.String("intent_id", intentID),
			zap.String("reason", reason))
		return model.EscrowStatusRefunded, nil

	default:
		if err := s.provider.Cancel(ctx, intentID, reason); err != nil {
			return "", fmt.Errorf("cancel: %w", err)
		}
		if err := s.escrowRepo.MarkClosed(ctx, intentID, model.EscrowStatusCanceled); err != nil {
			return "", fmt.Errorf("mark canceled: %w", err)
		}

		s.logger.Info("Escrow canceled",
			zap.String("intent_id", intentID),
			zap.String("reason", reason))
		return model.EscrowStatusCanceled, nil
	}
}

// RunPendingTasks прогоняет очередь отложенных платёжных операций.
// Вызывается фоновым reconciler-ом. Расхождение "статус сессии записан,
// платёжный вызов упал" закрывается здесь.
func (s *EscrowService) RunPendingTasks(ctx context.Context) {
	tasks, err := s.taskRepo.GetPending(ctx, 50)
	if err != nil {
		s.logger.Error("Failed to load pending payment tasks", zap.Error(err))
		return
	}

	for _, task := range tasks {
		if err := s.runTask(ctx, task); err != nil {
			s.logger.Error("Payment task failed",
				zap.Int64("task_id", task.ID),
				zap.String("operation", string(task.Operation)),
				zap.String("intent_id", task.PaymentIntentID),
				zap.Int("attempts", task.Attempts+1),
				zap.Error(err))

			if err := s.taskRepo.RecordFailure(ctx, task.ID, err.Error(), maxReconcileAttempts); err != nil {
				s.logger.Error("Failed to record payment task failure", zap.Error(err))
			}
			continue
		}

		if err := s.taskRepo.MarkDone(ctx, task.ID); err != nil {
			s.logger.Error("Failed to mark payment task done", zap.Error(err))
			continue
		}

		metrics.PaymentTasksReconciled.Inc()
		s.logger.Info("Payment task reconciled",
			zap.Int64("task_id", task.ID),
			zap.String("operation", string(task.Operation)),
			zap.String("intent_id", task.PaymentIntentID),
		)
	}
}

func (s *EscrowService) runTask(ctx context.Context, task *model.PaymentTask) error {
	return retry.Do(
		func() error {
			var err error
			switch task.Operation {
			case model.PaymentOpCapture:
				_, err = s.Capture(ctx, task.PaymentIntentID)
			case model.PaymentOpCancel:
				_, err = s.Cancel(ctx, task.PaymentIntentID, task.Reason)
			default:
				return fmt.Errorf("unknown payment operation: %s", task.Operation)
			}

			// Эскроу уже в терминальном статусе - операция фактически выполнена
			if errors.Is(err, ErrInvalidState) {
				return nil
			}
			return err
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrNotFound)
		}),
	)
}
