package model

import "time"

type PaymentOperation string

const (
	PaymentOpCapture PaymentOperation = "capture"
	PaymentOpCancel  PaymentOperation = "cancel"
)

type PaymentTaskStatus string

const (
	PaymentTaskPending PaymentTaskStatus = "pending"
	PaymentTaskDone    PaymentTaskStatus = "done"
	PaymentTaskFailed  PaymentTaskStatus = "failed"
)

// PaymentTask отложенная платёжная операция.
// Создаётся когда вызов провайдера на best-effort пути (завершение/отмена сессии)
// упал, а переход статуса сессии уже записан. Фоновый reconciler повторяет вызов.
type PaymentTask struct {
	ID              int64             `json:"id"`
	SessionID       int64             `json:"session_id"`
	PaymentIntentID string            `json:"payment_intent_id"`
	Operation       PaymentOperation  `json:"operation"`
	Reason          string            `json:"reason"`
	Attempts        int               `json:"attempts"`
	LastError       string            `json:"last_error"`
	Status          PaymentTaskStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
