package service

import (
	"context"

	"planner-reminders/internal/model"
	"planner-reminders/internal/repository"
	"planner-reminders/internal/tz"
)

// UserService wraps user-related business logic.
type UserService struct {
	users *repository.UserRepository
}

func NewUserService(users *repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Identify finds or registers the user behind a Telegram account.
func (s *UserService) Identify(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	return s.users.UpsertFromTelegram(ctx, telegramID, firstName, lastName, username)
}

// SetTimezone validates and stores a new zone for the user. Reminders
// already materialized keep their absolute times.
func (s *UserService) SetTimezone(ctx context.Context, user *model.User, zone string) error {
	if _, err := tz.Resolve(zone); err != nil {
		return err
	}
	if err := s.users.UpdateTimezone(ctx, user.ID, zone); err != nil {
		return err
	}
	user.Timezone = zone
	return nil
}
