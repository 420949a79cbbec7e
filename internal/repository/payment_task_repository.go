package repository

import (
	"context"
	"fmt"

	"github.com/hiredvalley/mentorbooking/internal/model"
	"github.com/hiredvalley/mentorbooking/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentTaskRepository struct {
	*base.Repository
}

func NewPaymentTaskRepository(pool *pgxpool.Pool) *PaymentTaskRepository {
	return &PaymentTaskRepository{Repository: base.NewRepository(pool)}
}

// Enqueue ставит отложенную платёжную операцию в очередь reconciler-а
func (r *PaymentTaskRepository) Enqueue(ctx context.Context, task *model.PaymentTask) error {
	query := `
		INSERT INTO payment_tasks (session_id, payment_intent_id, operation, reason, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		task.SessionID,
		task.PaymentIntentID,
		task.Operation,
		task.Reason,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("enqueue payment task: %w", err)
	}

	task.Status = model.PaymentTaskPending
	return nil
}

// GetPending получает необработанные задачи, старые первыми
func (r *PaymentTaskRepository) GetPending(ctx context.Context, limit int) ([]*model.PaymentTask, error) {
	query := `
		SELECT id, session_id, payment_intent_id, operation, reason, attempts, last_error, status, created_at, updated_at
		FROM payment_tasks
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending payment tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.PaymentTask
	for rows.Next() {
		var task model.PaymentTask
		err := rows.Scan(
			&task.ID,
			&task.SessionID,
			&task.PaymentIntentID,
			&task.Operation,
			&task.Reason,
			&task.Attempts,
			&task.LastError,
			&task.Status,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment task: %w", err)
		}
		tasks = append(tasks, &task)
	}

	return tasks, nil
}

// MarkDone помечает задачу выполненной
func (r *PaymentTaskRepository) MarkDone(ctx context.Context, id int64) error {
	query := `UPDATE payment_tasks SET status = 'done', updated_at = now() WHERE id = $1`

	if _, err := r.ExecAffected(ctx, query, id); err != nil {
		return fmt.Errorf("mark payment task done: %w", err)
	}

	return nil
}

// RecordFailure увеличивает счётчик попыток; после maxAttempts задача переходит в failed
func (r *PaymentTaskRepository) RecordFailure(ctx context.Context, id int64, lastError string, maxAttempts int) error {
	query := `
		UPDATE payment_tasks
		SET attempts = attempts + 1,
			last_error = $1,
			status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END,
			updated_at = now()
		WHERE id = $3
	`

	if _, err := r.ExecAffected(ctx, query, lastError, maxAttempts, id); err != nil {
		return fmt.Errorf("record payment task failure: %w", err)
	}

	return nil
}
