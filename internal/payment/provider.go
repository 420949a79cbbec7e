package payment

import "context"

// HoldRequest параметры создания authorization-only hold-а.
// Суммы в основной валютной единице, конвертация в минорные единицы - забота адаптера.
type HoldRequest struct {
	Amount             float64
	PlatformFee        float64
	Currency           string
	DestinationAccount string // connected account получателя выплаты
	Description        string
	Metadata           map[string]string
	IdempotencyKey     string
}

// Hold созданный у провайдера hold
type Hold struct {
	IntentID     string
	ClientSecret string // передаётся клиенту для подтверждения оплаты
}

// CaptureResult результат списания
type CaptureResult struct {
	AmountCaptured float64
}

// Provider минимальный контракт платёжного провайдера: создать hold,
// списать его или отменить/вернуть. Каждая операция отчитывается о статусе синхронно.
type Provider interface {
	CreateHold(ctx context.Context, req HoldRequest) (*Hold, error)
	Capture(ctx context.Context, intentID string) (*CaptureResult, error)
	Cancel(ctx context.Context, intentID, reason string) error
	Refund(ctx context.Context, intentID, reason string) error
}
