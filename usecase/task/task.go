package task

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

// UseCase is the task data-sync layer: single-shot writes plus live queries
// over one user's collection.
type UseCase struct {
	tasks  repository.TaskRepository
	feed   repository.ChangeFeed
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, feed repository.ChangeFeed, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		feed:   feed,
		logger: logger,
	}
}

func (uc *UseCase) ListTasks(ctx context.Context, userID string, filter repository.TaskFilter) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.tasks.List(ctx, userID, filter)
}

func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.tasks.GetByID(ctx, userID, id)
}

// CreateTask stores a new task. Status and priority default to todo and medium.
func (uc *UseCase) CreateTask(ctx context.Context, userID string, draft domain.TaskDraft) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	draft = draft.WithDefaults()
	if err := (domain.TaskPatch{Status: &draft.Status, Priority: &draft.Priority}).Check(); err != nil {
		return nil, err
	}

	created, err := uc.tasks.Create(ctx, userID, draft)
	if err != nil {
		uc.logger.Error("create task failed", zap.String("user_id", userID), zap.Error(err))
		return nil, domain.NewWriteError("create", err)
	}
	uc.publish(ctx, userID)
	return created, nil
}

// UpdateTask applies a partial update. A task that no longer exists yields a
// write error wrapping domain.ErrTaskNotFound.
func (uc *UseCase) UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := patch.Check(); err != nil {
		return nil, err
	}

	updated, err := uc.tasks.Update(ctx, userID, id, patch)
	if err != nil {
		uc.logger.Warn("update task failed", zap.String("user_id", userID), zap.String("task_id", id), zap.Error(err))
		return nil, domain.NewWriteError("update", err)
	}
	uc.publish(ctx, userID)
	return updated, nil
}

// DeleteTask removes a task. Deleting a task that is already gone succeeds.
func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if err := uc.tasks.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil
		}
		uc.logger.Error("delete task failed", zap.String("user_id", userID), zap.String("task_id", id), zap.Error(err))
		return domain.NewWriteError("delete", err)
	}
	uc.publish(ctx, userID)
	return nil
}

// publish is best effort; a failure is logged and the write still stands.
func (uc *UseCase) publish(ctx context.Context, userID string) {
	if uc.feed == nil {
		return
	}
	if err := uc.feed.Publish(context.WithoutCancel(ctx), userID); err != nil {
		uc.logger.Warn("publish task change failed", zap.String("user_id", userID), zap.Error(err))
	}
}
