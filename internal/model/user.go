package model

import "time"

type User struct {
	ID                int64     `json:"id"`
	Email             string    `json:"email"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	PreferredCurrency string    `json:"preferred_currency"`
	TelegramChatID    *int64    `json:"telegram_chat_id"` // указатель - может быть nil, если телеграм не привязан
	StripeCustomerID  *string   `json:"stripe_customer_id"`
	StripeAccountID   *string   `json:"stripe_account_id"` // connected account для выплат менторам
	PayoutsEnabled    bool      `json:"payouts_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
