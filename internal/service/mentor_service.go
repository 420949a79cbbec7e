package service

import (
	"context"
	"fmt"

	"github.com/hiredvalley/mentorbooking/internal/model"
	"go.uber.org/zap"
)

// MentorService управляет профилями менторов
type MentorService struct {
	mentorRepo MentorStore
	userRepo   UserStore
	logger     *zap.Logger
}

func NewMentorService(mentorRepo MentorStore, userRepo UserStore, logger *zap.Logger) *MentorService {
	return &MentorService{
		mentorRepo: mentorRepo,
		userRepo:   userRepo,
		logger:     logger,
	}
}

type MentorProfileInput struct {
	Bio         string   `json:"bio"`
	Skills      []string `json:"skills"`
	HourlyRate  float64  `json:"hourly_rate"`
	Currency    string   `json:"currency"`
	IsAvailable bool     `json:"is_available"`
}

// UpsertProfile создаёт профиль ментора или обновляет существующий
func (s *MentorService) UpsertProfile(ctx context.Context, userID int64, input MentorProfileInput) (*model.MentorProfile, error) {
	if input.HourlyRate < 0 {
		return nil, fmt.Errorf("%w: hourly rate cannot be negative", ErrValidation)
	}
	if input.Currency != "" && !supportedCurrencies[input.Currency] {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrValidation, input.Currency)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}

	mentor, err := s.mentorRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get mentor profile: %w", err)
	}

	if mentor == nil {
		mentor = &model.MentorProfile{
			UserID:      userID,
			Bio:         input.Bio,
			Skills:      input.Skills,
			HourlyRate:  input.HourlyRate,
			Currency:    input.Currency,
			IsAvailable: input.IsAvailable,
		}
		if err := s.mentorRepo.Create(ctx, mentor); err != nil {
			return nil, fmt.Errorf("create mentor profile: %w", err)
		}

		s.logger.Info("Mentor profile created",
			zap.Int64("mentor_profile_id", mentor.ID),
			zap.Int64("user_id", userID),
			zap.Float64("hourly_rate", mentor.HourlyRate),
		)
		return mentor, nil
	}

	mentor.Bio = input.Bio
	mentor.Skills = input.Skills
	mentor.HourlyRate = input.HourlyRate
	if input.Currency != "" {
		mentor.Currency = input.Currency
	}
	mentor.IsAvailable = input.IsAvailable

	if err := s.mentorRepo.Update(ctx, mentor); err != nil {
		return nil, fmt.Errorf("update mentor profile: %w", err)
	}

	s.logger.Info("Mentor profile updated",
		zap.Int64("mentor_profile_id", mentor.ID),
		zap.Int64("user_id", userID),
	)

	return mentor, nil
}

// SetAvailability переключает флаг доступности ментора
func (s *MentorService) SetAvailability(ctx context.Context, userID int64, available bool) error {
	mentor, err := s.mentorRepo.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get mentor profile: %w", err)
	}
	if mentor == nil {
		return fmt.Errorf("%w: mentor profile", ErrNotFound)
	}

	if err := s.mentorRepo.SetAvailability(ctx, mentor.ID, available); err != nil {
		return fmt.Errorf("set availability: %w", err)
	}

	s.logger.Info("Mentor availability changed",
		zap.Int64("mentor_profile_id", mentor.ID),
		zap.Bool("available", available),
	)

	return nil
}

// GetByID получает профиль ментора
func (s *MentorService) GetByID(ctx context.Context, id int64) (*model.MentorProfile, error) {
	mentor, err := s.mentorRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get mentor: %w", err)
	}
	if mentor == nil {
		return nil, fmt.Errorf("%w: mentor profile", ErrNotFound)
	}
	return mentor, nil
}

// ListAvailable получает доступных менторов, лучшие первыми
func (s *MentorService) ListAvailable(ctx context.Context) ([]*model.MentorProfile, error) {
	return s.mentorRepo.ListAvailable(ctx)
}
