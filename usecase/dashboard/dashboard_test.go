package dashboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/boltdb"
	boltrepo "github.com/fastygo/taskboard/repository/bolt"
	"github.com/fastygo/taskboard/repository/memory"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

type fakeSubscription struct {
	filter   domain.PriorityFilter
	onChange func(taskUC.Snapshot)
	closed   bool
}

type fakeSubscriber struct {
	mu   sync.Mutex
	subs []*fakeSubscription
	err  error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, _ string, filter domain.PriorityFilter, onChange func(taskUC.Snapshot)) (taskUC.Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSubscription{filter: filter, onChange: onChange}
	f.subs = append(f.subs, sub)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		sub.closed = true
	}, nil
}

func (f *fakeSubscriber) active() []*fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeSubscription
	for _, s := range f.subs {
		if !s.closed {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSubscriber) all() []*fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSubscription(nil), f.subs...)
}

var alice = &domain.User{ID: "alice", Email: "alice@example.com"}

func TestViewModel_SubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubscriber{}
	vm := New(sub, nil)

	assert.Empty(t, sub.all(), "no subscription without a user")

	require.NoError(t, vm.SetUser(ctx, alice))
	require.Len(t, sub.active(), 1)
	assert.Equal(t, domain.PriorityAll, sub.active()[0].filter)

	require.NoError(t, vm.SetFilter(ctx, domain.PriorityFilter(domain.PriorityHigh)))
	active := sub.active()
	require.Len(t, active, 1)
	assert.Equal(t, domain.PriorityFilter(domain.PriorityHigh), active[0].filter)
	assert.Len(t, sub.all(), 2)

	vm.ClearUser()
	assert.Empty(t, sub.active())
	assert.Nil(t, vm.User())
	assert.Empty(t, vm.Tasks())
}

func TestViewModel_DropsStaleDeliveries(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubscriber{}
	vm := New(sub, nil)
	require.NoError(t, vm.SetUser(ctx, alice))
	require.NoError(t, vm.SetFilter(ctx, domain.PriorityFilter(domain.PriorityHigh)))

	all := sub.all()
	require.Len(t, all, 2)
	stale, current := all[0], all[1]

	current.onChange(taskUC.Snapshot{Tasks: []domain.Task{{ID: "h1", Status: domain.StatusTodo, Priority: domain.PriorityHigh}}})
	stale.onChange(taskUC.Snapshot{Tasks: []domain.Task{{ID: "l1", Status: domain.StatusTodo, Priority: domain.PriorityLow}}})

	tasks := vm.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "h1", tasks[0].ID)
}

func TestViewModel_FilterSwitchHidesOldList(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubscriber{}
	vm := New(sub, nil)
	require.NoError(t, vm.SetUser(ctx, alice))
	sub.active()[0].onChange(taskUC.Snapshot{Tasks: []domain.Task{{ID: "l1", Status: domain.StatusTodo, Priority: domain.PriorityLow}}})
	require.Len(t, vm.Tasks(), 1)
	assert.False(t, vm.State().Loading)

	require.NoError(t, vm.SetFilter(ctx, domain.PriorityFilter(domain.PriorityHigh)))

	state := vm.State()
	assert.Equal(t, domain.PriorityFilter(domain.PriorityHigh), state.Filter)
	assert.Empty(t, state.Tasks, "low priority task is not shown under the high filter")
	assert.True(t, state.Loading)

	sub.active()[0].onChange(taskUC.Snapshot{Tasks: []domain.Task{{ID: "h1", Status: domain.StatusTodo, Priority: domain.PriorityHigh}}})
	state = vm.State()
	assert.False(t, state.Loading)
	require.Len(t, state.Tasks, 1)
	assert.Equal(t, "h1", state.Tasks[0].ID)
}

func TestViewModel_SubscriptionError(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal delivery", func(t *testing.T) {
		sub := &fakeSubscriber{}
		vm := New(sub, nil)
		require.NoError(t, vm.SetUser(ctx, alice))

		sub.active()[0].onChange(taskUC.Snapshot{Tasks: []domain.Task{{ID: "t1", Status: domain.StatusDone}}})
		sub.active()[0].onChange(taskUC.Snapshot{Err: domain.ErrUnauthorized})

		assert.ErrorIs(t, vm.Err(), domain.ErrUnauthorized)
		assert.Len(t, vm.Tasks(), 1, "last good list is kept")
	})

	t.Run("open failure", func(t *testing.T) {
		boom := errors.New("feed unavailable")
		vm := New(&fakeSubscriber{err: boom}, nil)

		assert.ErrorIs(t, vm.SetUser(ctx, alice), boom)
		assert.ErrorIs(t, vm.State().Err, boom)
	})
}

func TestViewModel_Dialog(t *testing.T) {
	vm := New(&fakeSubscriber{}, nil)
	var modes []DialogMode
	vm.OnChange(func(s State) { modes = append(modes, s.Dialog.Mode) })

	vm.OpenCreate()
	assert.Equal(t, DialogCreate, vm.Dialog().Mode)

	task := domain.Task{ID: "t1", Title: "Plan launch"}
	vm.OpenEdit(task)
	require.NotNil(t, vm.Dialog().Task)
	assert.Equal(t, "t1", vm.Dialog().Task.ID)

	vm.CloseDialog()
	assert.Equal(t, Dialog{Mode: DialogClosed}, vm.Dialog())
	assert.Equal(t, []DialogMode{DialogCreate, DialogEdit, DialogClosed}, modes)
}

func TestPartition(t *testing.T) {
	tasks := []domain.Task{
		{ID: "5", Status: domain.StatusDone},
		{ID: "4", Status: domain.StatusTodo},
		{ID: "3", Status: domain.StatusInProgress},
		{ID: "2", Status: domain.StatusTodo},
		{ID: "1", Status: domain.StatusDone},
	}

	columns := Partition(tasks)

	require.Len(t, columns, 3)
	tests := []struct {
		status domain.TaskStatus
		title  string
		ids    []string
	}{
		{domain.StatusTodo, "To Do", []string{"4", "2"}},
		{domain.StatusInProgress, "In Progress", []string{"3"}},
		{domain.StatusDone, "Done", []string{"5", "1"}},
	}
	total := 0
	for i, tt := range tests {
		col := columns[i]
		assert.Equal(t, tt.status, col.Status)
		assert.Equal(t, tt.title, col.Title)
		var ids []string
		for _, task := range col.Tasks {
			ids = append(ids, task.ID)
		}
		assert.Equal(t, tt.ids, ids)
		assert.Empty(t, col.Placeholder)
		total += len(col.Tasks)
	}
	assert.Equal(t, len(tasks), total)

	empty := Partition(nil)
	for _, col := range empty {
		assert.True(t, col.Empty())
		assert.Equal(t, "No tasks here.", col.Placeholder)
	}
}

func TestViewModel_EndToEnd(t *testing.T) {
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var (
		clockMu sync.Mutex
		now     = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		now = now.Add(time.Second)
		return now
	}

	feed := memory.NewChangeFeed()
	tasks := taskUC.New(boltrepo.NewTaskRepository(db, clock), feed, nil)
	ctx := context.Background()

	older, err := tasks.CreateTask(ctx, alice.ID, domain.TaskDraft{Title: "Write brief"})
	require.NoError(t, err)

	vm := New(tasks, nil)
	t.Cleanup(vm.Close)
	require.NoError(t, vm.SetUser(ctx, alice))
	require.Eventually(t, func() bool { return len(vm.Tasks()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, feed.Watchers(alice.ID))

	created, err := tasks.CreateTask(ctx, alice.ID, domain.TaskDraft{
		Title:    "Plan launch",
		Status:   domain.StatusTodo,
		Priority: domain.PriorityMedium,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(vm.Tasks()) == 2 }, time.Second, 5*time.Millisecond)
	todo := vm.Columns()[0]
	require.Len(t, todo.Tasks, 2)
	assert.Equal(t, created.ID, todo.Tasks[0].ID, "newest task first")
	assert.Equal(t, older.ID, todo.Tasks[1].ID)

	require.NoError(t, vm.SetFilter(ctx, domain.PriorityFilter(domain.PriorityHigh)))
	require.Eventually(t, func() bool { return len(vm.Tasks()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, feed.Watchers(alice.ID), "switching the filter keeps one live stream")
	require.NoError(t, vm.SetFilter(ctx, domain.PriorityAll))
	require.Eventually(t, func() bool { return len(vm.Tasks()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, tasks.DeleteTask(ctx, alice.ID, created.ID))
	require.NoError(t, tasks.DeleteTask(ctx, alice.ID, older.ID))
	require.Eventually(t, func() bool { return len(vm.Tasks()) == 0 }, time.Second, 5*time.Millisecond)

	todo = vm.Columns()[0]
	assert.True(t, todo.Empty())
	assert.Equal(t, "No tasks here.", todo.Placeholder)

	vm.ClearUser()
	assert.Equal(t, 0, feed.Watchers(alice.ID))
}

func TestViewModel_BindFollowsIdentity(t *testing.T) {
	sub := &fakeSubscriber{}
	vm := New(sub, nil)
	identity := authUC.NewIdentity(nil)

	stop := vm.Bind(context.Background(), identity)
	defer stop()
	assert.Empty(t, sub.all())

	identity.SignIn(alice)
	require.Len(t, sub.active(), 1)
	assert.Equal(t, alice, vm.User())

	identity.SignOut()
	assert.Empty(t, sub.active())
	assert.Nil(t, vm.User())
}
