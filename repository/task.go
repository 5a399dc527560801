package repository

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

// TaskFilter narrows a listing of one user's tasks. A zero Limit means no limit.
type TaskFilter struct {
	Priority domain.PriorityFilter
	Limit    int
	Offset   int
}

// TaskRepository stores tasks in per-user collections. Listings are ordered by
// created_at descending, id descending on ties.
type TaskRepository interface {
	GetByID(ctx context.Context, userID, id string) (*domain.Task, error)
	List(ctx context.Context, userID string, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, userID string, draft domain.TaskDraft) (*domain.Task, error)
	Update(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, userID, id string) error
}
