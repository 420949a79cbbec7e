package repository

import (
	"context"
	"fmt"

	"github.com/hiredvalley/mentorbooking/internal/model"
	"github.com/hiredvalley/mentorbooking/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MentorRepository struct {
	*base.Repository
}

func NewMentorRepository(pool *pgxpool.Pool) *MentorRepository {
	return &MentorRepository{Repository: base.NewRepository(pool)}
}

const mentorColumns = `id, user_id, bio, skills, hourly_rate, currency, is_available,
		rating, review_count, session_count, created_at, updated_at`

func scanMentor(row interface{ Scan(...any) error }) (*model.MentorProfile, error) {
	var mentor model.MentorProfile
	err := row.Scan(
		&mentor.ID,
		&mentor.UserID,
		&mentor.Bio,
		&mentor.Skills,
		&mentor.HourlyRate,
		&mentor.Currency,
		&mentor.IsAvailable,
		&mentor.Rating,
		&mentor.ReviewCount,
		&mentor.SessionCount,
		&mentor.CreatedAt,
		&mentor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &mentor, nil
}

// Create создаёт профиль ментора
func (r *MentorRepository) Create(ctx context.Context, mentor *model.MentorProfile) error {
	query := `
		INSERT INTO mentor_profiles (user_id, bio, skills, hourly_rate, currency, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, rating, review_count, session_count, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		mentor.UserID,
		mentor.Bio,
		mentor.Skills,
		mentor.HourlyRate,
		mentor.Currency,
		mentor.IsAvailable,
	).Scan(&mentor.ID, &mentor.Rating, &mentor.ReviewCount, &mentor.SessionCount, &mentor.CreatedAt, &mentor.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create mentor profile: %w", err)
	}

	return nil
}

// GetByID получает профиль ментора по ID
func (r *MentorRepository) GetByID(ctx context.Context, id int64) (*model.MentorProfile, error) {
	query := `SELECT ` + mentorColumns + ` FROM mentor_profiles WHERE id = $1`

	mentor, err := scanMentor(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get mentor by id: %w", err)
	}

	return mentor, nil
}

// GetByUserID получает профиль ментора по ID пользователя
func (r *MentorRepository) GetByUserID(ctx context.Context, userID int64) (*model.MentorProfile, error) {
	query := `SELECT ` + mentorColumns + ` FROM mentor_profiles WHERE user_id = $1`

	mentor, err := scanMentor(r.QueryRow(ctx, query, userID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get mentor by user id: %w", err)
	}

	return mentor, nil
}

// ListAvailable получает всех доступных менторов
func (r *MentorRepository) ListAvailable(ctx context.Context) ([]*model.MentorProfile, error) {
	query := `
		SELECT ` + mentorColumns + `
		FROM mentor_profiles
		WHERE is_available = true
		ORDER BY rating DESC, session_count DESC
	`

	rows, err := r.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list available mentors: %w", err)
	}
	defer rows.Close()

	var mentors []*model.MentorProfile
	for rows.Next() {
		mentor, err := scanMentor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mentor: %w", err)
		}
		mentors = append(mentors, mentor)
	}

	return mentors, nil
}

// Update обновляет профиль ментора
func (r *MentorRepository) Update(ctx context.Context, mentor *model.MentorProfile) error {
	query := `
		UPDATE mentor_profiles
		SET bio = $1, skills = $2, hourly_rate = $3, currency = $4, is_available = $5, updated_at = now()
		WHERE id = $6
	`

	affected, err := r.ExecAffected(ctx, query,
		mentor.Bio,
		mentor.Skills,
		mentor.HourlyRate,
		mentor.Currency,
		mentor.IsAvailable,
		mentor.ID,
	)
	if err != nil {
		return fmt.Errorf("update mentor profile: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("mentor profile not found")
	}

	return nil
}

// SetAvailability переключает доступность ментора
func (r *MentorRepository) SetAvailability(ctx context.Context, id int64, available bool) error {
	query := `UPDATE mentor_profiles SET is_available = $1, updated_at = now() WHERE id = $2`

	affected, err := r.ExecAffected(ctx, query, available, id)
	if err != nil {
		return fmt.Errorf("set mentor availability: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("mentor profile not found")
	}

	return nil
}

// IncrementSessionCount атомарно увеличивает счётчик завершённых сессий
func (r *MentorRepository) IncrementSessionCount(ctx context.Context, id int64) error {
	query := `UPDATE mentor_profiles SET session_count = session_count + 1, updated_at = now() WHERE id = $1`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment session count: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("mentor profile not found")
	}

	return nil
}

// ApplyRating атомарно пересчитывает скользящее среднее:
// (oldAvg*oldCount + rating) / (oldCount+1), review_count + 1
func (r *MentorRepository) ApplyRating(ctx context.Context, id int64, rating int) error {
	query := `
		UPDATE mentor_profiles
		SET rating = (rating * review_count + $1) / (review_count + 1),
			review_count = review_count + 1,
			updated_at = now()
		WHERE id = $2
	`

	affected, err := r.ExecAffected(ctx, query, rating, id)
	if err != nil {
		return fmt.Errorf("apply rating: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("mentor profile not found")
	}

	return nil
}
