package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

const taskColumns = `id, user_id, title, description, status, priority, due_date, created_at, updated_at`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE id = $1 AND user_id = $2
	`
	row := r.pool.QueryRow(ctx, query, id, userID)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, userID string, filter repository.TaskFilter) ([]domain.Task, error) {
	const query = `
	SELECT ` + taskColumns + `
	FROM tasks
	WHERE user_id = $1
	  AND ($2 = '' OR priority = $2)
	ORDER BY created_at DESC, id DESC
	LIMIT NULLIF($3::int, 0) OFFSET $4
	`
	priority, _ := filter.Priority.Priority()
	rows, err := r.pool.Query(ctx, query, userID, string(priority), clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Create(ctx context.Context, userID string, draft domain.TaskDraft) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	RETURNING created_at, updated_at
	`

	task := draft.NewTask(uuid.NewString(), userID, time.Time{})

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		nullDate(task.DueDate),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return &task, nil
}

// Update applies a partial patch. updated_at moves strictly forward even when
// two writes land inside the same transaction timestamp.
func (r *taskRepository) Update(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	const query = `
	UPDATE tasks
	SET title = COALESCE($3, title),
		description = COALESCE($4, description),
		status = COALESCE($5, status),
		priority = COALESCE($6, priority),
		due_date = CASE WHEN $7 THEN $8 ELSE due_date END,
		updated_at = GREATEST(NOW(), updated_at + INTERVAL '1 microsecond')
	WHERE id = $1 AND user_id = $2
	RETURNING ` + taskColumns

	row := r.pool.QueryRow(ctx, query,
		id,
		userID,
		patch.Title,
		patch.Description,
		(*string)(patch.Status),
		(*string)(patch.Priority),
		patch.DueDateSet,
		nullDate(domain.NormalizeDueDate(patch.DueDate)),
	)
	return scanTask(row)
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var due *time.Time

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&due,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.DueDate = storedDueDate(due)
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 0
	}
	if limit > 500 {
		return 500
	}
	return limit
}
