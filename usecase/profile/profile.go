package profile

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

// Profile is the signed-in account with a per-status count of its tasks.
type Profile struct {
	User   *domain.User              `json:"user"`
	Counts map[domain.TaskStatus]int `json:"counts"`
	Total  int                       `json:"total"`
}

type UseCase struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, tasks repository.TaskRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		tasks:  tasks,
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tasks, err := uc.tasks.List(ctx, userID, repository.TaskFilter{Priority: domain.PriorityAll})
	if err != nil {
		uc.logger.Warn("count tasks for profile failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	profile := &Profile{
		User:   user,
		Counts: make(map[domain.TaskStatus]int, len(domain.Statuses)),
		Total:  len(tasks),
	}
	for _, status := range domain.Statuses {
		profile.Counts[status] = 0
	}
	for _, t := range tasks {
		profile.Counts[t.Status]++
	}
	return profile, nil
}
