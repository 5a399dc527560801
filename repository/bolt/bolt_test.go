package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/boltdb"
	"github.com/fastygo/taskboard/repository"
)

func openTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// steppingClock advances by step on every call.
func steppingClock(start time.Time, step time.Duration) Clock {
	now := start
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

var base = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func TestTaskRepository_CreateAppliesDefaults(t *testing.T) {
	repo := NewTaskRepository(openTestDB(t), steppingClock(base, time.Second))
	ctx := context.Background()

	created, err := repo.Create(ctx, "u1", domain.TaskDraft{Title: "Plan launch"})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, domain.StatusTodo, created.Status)
	assert.Equal(t, domain.PriorityMedium, created.Priority)
	assert.Nil(t, created.DueDate)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	stored, err := repo.GetByID(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	_, err = repo.GetByID(ctx, "u2", created.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound, "tasks are scoped per user")
}

func TestTaskRepository_UpdateAdvancesUpdatedAt(t *testing.T) {
	frozen := func() time.Time { return base }
	repo := NewTaskRepository(openTestDB(t), frozen)
	ctx := context.Background()

	created, err := repo.Create(ctx, "u1", domain.TaskDraft{Title: "Plan launch"})
	require.NoError(t, err)

	done := domain.StatusDone
	first, err := repo.Update(ctx, "u1", created.ID, domain.TaskPatch{Status: &done})
	require.NoError(t, err)
	second, err := repo.Update(ctx, "u1", created.ID, domain.TaskPatch{})
	require.NoError(t, err)

	assert.Equal(t, created.CreatedAt, second.CreatedAt)
	assert.True(t, first.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, domain.StatusDone, second.Status)
	assert.Equal(t, "Plan launch", second.Title)
}

func TestTaskRepository_UpdateDueDate(t *testing.T) {
	repo := NewTaskRepository(openTestDB(t), steppingClock(base, time.Second))
	ctx := context.Background()

	due := time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC)
	created, err := repo.Create(ctx, "u1", domain.TaskDraft{Title: "Plan launch", DueDate: &due})
	require.NoError(t, err)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *created.DueDate)

	title := "Plan the launch"
	kept, err := repo.Update(ctx, "u1", created.ID, domain.TaskPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, created.DueDate, kept.DueDate)

	cleared, err := repo.Update(ctx, "u1", created.ID, domain.TaskPatch{DueDateSet: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
}

func TestTaskRepository_ListOrderAndFilter(t *testing.T) {
	repo := NewTaskRepository(openTestDB(t), steppingClock(base, time.Second))
	ctx := context.Background()

	priorities := []domain.TaskPriority{domain.PriorityHigh, domain.PriorityLow, domain.PriorityHigh, domain.PriorityMedium}
	var ids []string
	for i, p := range priorities {
		task, err := repo.Create(ctx, "u1", domain.TaskDraft{Title: "task " + string(rune('a'+i)), Priority: p})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}
	_, err := repo.Create(ctx, "u2", domain.TaskDraft{Title: "someone else", Priority: domain.PriorityHigh})
	require.NoError(t, err)

	tests := []struct {
		name    string
		filter  repository.TaskFilter
		wantIDs []string
	}{
		{name: "all", filter: repository.TaskFilter{Priority: domain.PriorityAll}, wantIDs: []string{ids[3], ids[2], ids[1], ids[0]}},
		{name: "high only", filter: repository.TaskFilter{Priority: domain.PriorityFilter(domain.PriorityHigh)}, wantIDs: []string{ids[2], ids[0]}},
		{name: "empty filter is all", filter: repository.TaskFilter{}, wantIDs: []string{ids[3], ids[2], ids[1], ids[0]}},
		{name: "limit and offset", filter: repository.TaskFilter{Limit: 2, Offset: 1}, wantIDs: []string{ids[2], ids[1]}},
		{name: "offset past the end", filter: repository.TaskFilter{Offset: 10}, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := repo.List(ctx, "u1", tt.filter)
			require.NoError(t, err)
			var got []string
			for _, task := range tasks {
				got = append(got, task.ID)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}

	empty, err := repo.List(ctx, "nobody", repository.TaskFilter{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTaskRepository_Delete(t *testing.T) {
	repo := NewTaskRepository(openTestDB(t), steppingClock(base, time.Second))
	ctx := context.Background()

	created, err := repo.Create(ctx, "u1", domain.TaskDraft{Title: "Plan launch"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "u1", created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "u1", created.ID), domain.ErrTaskNotFound)

	_, err = repo.Update(ctx, "u1", created.ID, domain.TaskPatch{})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(openTestDB(t), steppingClock(base, time.Second))
	ctx := context.Background()

	user := &domain.User{ID: "u1", Email: " Alice@Example.com ", PasswordHash: "hash", Role: "user", Status: "active"}
	require.NoError(t, repo.Create(ctx, user))

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	dup := &domain.User{ID: "u2", Email: "ALICE@example.com"}
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrEmailTaken)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSessionRepository(t *testing.T) {
	now := base
	clock := func() time.Time { return now }
	repo := NewSessionRepository(openTestDB(t), time.Hour, clock)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.Session{ID: "s1", UserID: "u1"}))

	session, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), session.ExpiresAt)

	now = base.Add(50 * time.Minute)
	require.NoError(t, repo.Extend(ctx, "s1", time.Hour))

	now = base.Add(90 * time.Minute)
	_, err = repo.Get(ctx, "s1")
	require.NoError(t, err, "extended session is still valid")

	now = base.Add(3 * time.Hour)
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, repo.Delete(ctx, "s1"))
}
