package model

import "time"

type EscrowStatus string

const (
	EscrowStatusPending    EscrowStatus = "pending"    // hold создан, ожидает подтверждения оплаты
	EscrowStatusAuthorized EscrowStatus = "authorized" // средства заблокированы
	EscrowStatusCaptured   EscrowStatus = "captured"   // средства списаны
	EscrowStatusCanceled   EscrowStatus = "canceled"   // hold отменён до списания
	EscrowStatusRefunded   EscrowStatus = "refunded"   // возврат после списания
)

// EscrowPayment зеркалирует hold у платёжного провайдера
type EscrowPayment struct {
	ID              int64        `json:"id"`
	PaymentIntentID string       `json:"payment_intent_id"`
	PayerID         int64        `json:"payer_id"`
	PayeeID         int64        `json:"payee_id"`
	Amount          float64      `json:"amount"`
	PlatformFee     float64      `json:"platform_fee"`
	Currency        string       `json:"currency"`
	Status          EscrowStatus `json:"status"`
	CapturedAt      *time.Time   `json:"captured_at"`
	CanceledAt      *time.Time   `json:"canceled_at"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
