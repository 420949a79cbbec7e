package repository

import (
	"context"
	"fmt"

	"github.com/hiredvalley/mentorbooking/internal/model"
	"github.com/hiredvalley/mentorbooking/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EscrowRepository struct {
	*base.Repository
}

func NewEscrowRepository(pool *pgxpool.Pool) *EscrowRepository {
	return &EscrowRepository{Repository: base.NewRepository(pool)}
}

const escrowColumns = `id, payment_intent_id, payer_id, payee_id, amount, platform_fee, currency,
		status, captured_at, canceled_at, created_at, updated_at`

func scanEscrow(row interface{ Scan(...any) error }) (*model.EscrowPayment, error) {
	var payment model.EscrowPayment
	err := row.Scan(
		&payment.ID,
		&payment.PaymentIntentID,
		&payment.PayerID,
		&payment.PayeeID,
		&payment.Amount,
		&payment.PlatformFee,
		&payment.Currency,
		&payment.Status,
		&payment.CapturedAt,
		&payment.CanceledAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create создаёт запись escrow-платежа
func (r *EscrowRepository) Create(ctx context.Context, payment *model.EscrowPayment) error {
	query := `
		INSERT INTO escrow_payments (payment_intent_id, payer_id, payee_id, amount, platform_fee, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		payment.PaymentIntentID,
		payment.PayerID,
		payment.PayeeID,
		payment.Amount,
		payment.PlatformFee,
		payment.Currency,
		payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create escrow payment: %w", err)
	}

	return nil
}

// GetByIntentID получает escrow-платёж по payment intent
func (r *EscrowRepository) GetByIntentID(ctx context.Context, intentID string) (*model.EscrowPayment, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_payments WHERE payment_intent_id = $1`

	payment, err := scanEscrow(r.QueryRow(ctx, query, intentID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get escrow by intent id: %w", err)
	}

	return payment, nil
}

// MarkCaptured переводит платёж в captured с отметкой времени
func (r *EscrowRepository) MarkCaptured(ctx context.Context, intentID string) error {
	query := `
		UPDATE escrow_payments
		SET status = 'captured', captured_at = now(), updated_at = now()
		WHERE payment_intent_id = $1
	`

	affected, err := r.ExecAffected(ctx, query, intentID)
	if err != nil {
		return fmt.Errorf("mark escrow captured: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("escrow payment not found")
	}

	return nil
}

// MarkClosed переводит платёж в canceled или refunded с отметкой времени
func (r *EscrowRepository) MarkClosed(ctx context.Context, intentID string, status model.EscrowStatus) error {
	query := `
		UPDATE escrow_payments
		SET status = $1, canceled_at = now(), updated_at = now()
		WHERE payment_intent_id = $2
	`

	affected, err := r.ExecAffected(ctx, query, status, intentID)
	if err != nil {
		return fmt.Errorf("mark escrow closed: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("escrow payment not found")
	}

	return nil
}
