package repository

import (
	"context"
	"fmt"

	"github.com/hiredvalley/mentorbooking/internal/model"
	"github.com/hiredvalley/mentorbooking/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionEventRepository struct {
	*base.Repository
}

func NewSessionEventRepository(pool *pgxpool.Pool) *SessionEventRepository {
	return &SessionEventRepository{Repository: base.NewRepository(pool)}
}

// Append добавляет запись в историю сессии (append-only)
func (r *SessionEventRepository) Append(ctx context.Context, event *model.SessionEvent) error {
	query := `
		INSERT INTO session_events (session_id, actor_id, action, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		event.SessionID,
		event.ActorID,
		event.Action,
		event.Detail,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("append session event: %w", err)
	}

	return nil
}

// GetBySessionID получает историю сессии в хронологическом порядке
func (r *SessionEventRepository) GetBySessionID(ctx context.Context, sessionID int64) ([]*model.SessionEvent, error) {
	query := `
		SELECT id, session_id, actor_id, action, detail, created_at
		FROM session_events
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session events: %w", err)
	}
	defer rows.Close()

	var events []*model.SessionEvent
	for rows.Next() {
		var event model.SessionEvent
		err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.ActorID,
			&event.Action,
			&event.Detail,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		events = append(events, &event)
	}

	return events, nil
}
