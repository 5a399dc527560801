package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/boltdb"
	"github.com/fastygo/taskboard/repository"
)

var bucketTasks = []byte("tasks")

// Clock returns the server timestamp stamped on writes.
type Clock func() time.Time

type taskRepository struct {
	db  *bbolt.DB
	now Clock
}

// NewTaskRepository stores tasks as JSON documents under users/<user_id>/tasks/<id>.
func NewTaskRepository(db *bbolt.DB, now Clock) repository.TaskRepository {
	if now == nil {
		now = time.Now
	}
	return &taskRepository{db: db, now: now}
}

func (r *taskRepository) GetByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	var task *domain.Task
	err := r.db.View(func(tx *bbolt.Tx) error {
		tasks := userTasks(tx, userID)
		if tasks == nil {
			return domain.ErrTaskNotFound
		}
		raw := tasks.Get([]byte(id))
		if raw == nil {
			return domain.ErrTaskNotFound
		}
		var err error
		task, err = decodeTask(raw)
		return err
	})
	return task, err
}

func (r *taskRepository) List(ctx context.Context, userID string, filter repository.TaskFilter) ([]domain.Task, error) {
	result := []domain.Task{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		tasks := userTasks(tx, userID)
		if tasks == nil {
			return nil
		}
		return tasks.ForEach(func(_, v []byte) error {
			task, err := decodeTask(v)
			if err != nil {
				return err
			}
			if filter.Priority.Matches(*task) {
				result = append(result, *task)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Task{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *taskRepository) Create(ctx context.Context, userID string, draft domain.TaskDraft) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrInvalidPayload
	}

	task := draft.NewTask(uuid.NewString(), userID, r.now().UTC())
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		user, err := tx.Bucket(boltdb.BucketUsers).CreateBucketIfNotExists([]byte(userID))
		if err != nil {
			return err
		}
		tasks, err := user.CreateBucketIfNotExists(bucketTasks)
		if err != nil {
			return err
		}
		return tasks.Put([]byte(task.ID), payload)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) Update(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	var updated *domain.Task
	err := r.db.Update(func(tx *bbolt.Tx) error {
		tasks := userTasks(tx, userID)
		if tasks == nil {
			return domain.ErrTaskNotFound
		}
		raw := tasks.Get([]byte(id))
		if raw == nil {
			return domain.ErrTaskNotFound
		}
		task, err := decodeTask(raw)
		if err != nil {
			return err
		}

		patch.Apply(task)
		now := r.now().UTC()
		if !now.After(task.UpdatedAt) {
			now = task.UpdatedAt.Add(time.Microsecond)
		}
		task.UpdatedAt = now

		payload, err := json.Marshal(task)
		if err != nil {
			return err
		}
		updated = task
		return tasks.Put([]byte(id), payload)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		tasks := userTasks(tx, userID)
		if tasks == nil || tasks.Get([]byte(id)) == nil {
			return domain.ErrTaskNotFound
		}
		return tasks.Delete([]byte(id))
	})
}

func userTasks(tx *bbolt.Tx, userID string) *bbolt.Bucket {
	if userID == "" {
		return nil
	}
	user := tx.Bucket(boltdb.BucketUsers).Bucket([]byte(userID))
	if user == nil {
		return nil
	}
	return user.Bucket(bucketTasks)
}

func decodeTask(raw []byte) (*domain.Task, error) {
	var task domain.Task
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&task); err != nil {
		return nil, err
	}
	return &task, nil
}
