package dashboard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

// EmptyColumnPlaceholder is shown in a column without tasks.
const EmptyColumnPlaceholder = "No tasks here."

// Subscriber opens live task queries.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string, filter domain.PriorityFilter, onChange func(taskUC.Snapshot)) (taskUC.Unsubscribe, error)
}

// DialogMode describes the task form dialog.
type DialogMode string

const (
	DialogClosed DialogMode = "closed"
	DialogCreate DialogMode = "create"
	DialogEdit   DialogMode = "edit"
)

// Dialog is the form dialog state; Task is set only in DialogEdit.
type Dialog struct {
	Mode DialogMode   `json:"mode"`
	Task *domain.Task `json:"task,omitempty"`
}

// Column is one status lane of the board.
type Column struct {
	Status      domain.TaskStatus `json:"status"`
	Title       string            `json:"title"`
	Tasks       []domain.Task     `json:"tasks"`
	Placeholder string            `json:"placeholder,omitempty"`
}

// Empty reports whether the column shows its placeholder.
func (c Column) Empty() bool {
	return len(c.Tasks) == 0
}

// State is a render snapshot of the view-model.
type State struct {
	User    *domain.User          `json:"user,omitempty"`
	Filter  domain.PriorityFilter `json:"filter"`
	Tasks   []domain.Task         `json:"tasks"`
	Columns []Column              `json:"columns"`
	Dialog  Dialog                `json:"dialog"`
	// Loading is set from a (re)subscribe until its first delivery; Tasks is
	// empty meanwhile.
	Loading bool  `json:"loading"`
	Err     error `json:"-"`
}

// ViewModel mirrors the signed-in user's tasks through at most one live
// subscription and carries the board's filter and dialog state.
type ViewModel struct {
	subscriber Subscriber
	logger     *zap.Logger

	// lifecycle serializes subscription changes; it is never held while
	// taking mu from a delivery.
	lifecycle sync.Mutex
	unsub     taskUC.Unsubscribe

	mu        sync.RWMutex
	user      *domain.User
	filter    domain.PriorityFilter
	tasks     []domain.Task
	dialog    Dialog
	loading   bool
	err       error
	gen       uint64
	listeners []func(State)
}

func New(subscriber Subscriber, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		subscriber: subscriber,
		logger:     logger,
		filter:     domain.PriorityAll,
		dialog:     Dialog{Mode: DialogClosed},
	}
}

// OnChange registers a render hook called after every state change.
func (vm *ViewModel) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.listeners = append(vm.listeners, fn)
}

// SetUser makes user the board owner and (re)opens the subscription. A nil
// user tears the subscription down and empties the board.
func (vm *ViewModel) SetUser(ctx context.Context, user *domain.User) error {
	vm.lifecycle.Lock()
	defer vm.lifecycle.Unlock()

	vm.mu.Lock()
	vm.user = user
	vm.mu.Unlock()

	if user == nil {
		vm.teardown()
		vm.mu.Lock()
		vm.tasks = nil
		vm.loading = false
		vm.err = nil
		vm.dialog = Dialog{Mode: DialogClosed}
		vm.mu.Unlock()
		vm.emit()
		return nil
	}
	return vm.resubscribe(ctx)
}

// IdentitySource reports the signed-in user, immediately and on every change.
type IdentitySource interface {
	Watch(fn func(*domain.User)) func()
}

// Bind follows the signed-in user of src. The returned func stops following
// but leaves the current subscription in place; call Close to release it.
func (vm *ViewModel) Bind(ctx context.Context, src IdentitySource) func() {
	return src.Watch(func(user *domain.User) {
		if err := vm.SetUser(ctx, user); err != nil {
			vm.logger.Warn("follow signed-in user failed", zap.Error(err))
		}
	})
}

// ClearUser is SetUser(nil).
func (vm *ViewModel) ClearUser() {
	_ = vm.SetUser(context.Background(), nil)
}

// SetFilter switches the priority filter, replacing the live subscription.
func (vm *ViewModel) SetFilter(ctx context.Context, filter domain.PriorityFilter) error {
	if filter == "" {
		filter = domain.PriorityAll
	}
	vm.lifecycle.Lock()
	defer vm.lifecycle.Unlock()

	vm.mu.Lock()
	vm.filter = filter
	hasUser := vm.user != nil
	vm.mu.Unlock()

	if !hasUser {
		vm.emit()
		return nil
	}
	return vm.resubscribe(ctx)
}

// Close unmounts the board and releases its subscription.
func (vm *ViewModel) Close() {
	vm.lifecycle.Lock()
	defer vm.lifecycle.Unlock()
	vm.teardown()
}

// resubscribe disposes of the old subscription before installing the new one.
// The list is emptied so it never pairs with a user or filter it was not
// queried for. Callers hold lifecycle.
func (vm *ViewModel) resubscribe(ctx context.Context) error {
	vm.teardown()

	vm.mu.Lock()
	vm.gen++
	gen := vm.gen
	userID := vm.user.ID
	filter := vm.filter
	vm.tasks = nil
	vm.loading = true
	vm.err = nil
	vm.mu.Unlock()
	vm.emit()

	unsub, err := vm.subscriber.Subscribe(ctx, userID, filter, func(s taskUC.Snapshot) {
		vm.receive(gen, s)
	})
	if err != nil {
		vm.logger.Error("open task subscription failed", zap.String("user_id", userID), zap.Error(err))
		vm.mu.Lock()
		vm.loading = false
		vm.err = err
		vm.mu.Unlock()
		vm.emit()
		return err
	}
	vm.unsub = unsub
	return nil
}

func (vm *ViewModel) teardown() {
	vm.mu.Lock()
	vm.gen++
	vm.mu.Unlock()

	if vm.unsub != nil {
		vm.unsub()
		vm.unsub = nil
	}
}

func (vm *ViewModel) receive(gen uint64, s taskUC.Snapshot) {
	vm.mu.Lock()
	if gen != vm.gen {
		vm.mu.Unlock()
		return
	}
	vm.loading = false
	if s.Err != nil {
		vm.err = s.Err
	} else {
		vm.tasks = s.Tasks
		vm.err = nil
	}
	vm.mu.Unlock()
	vm.emit()
}

// OpenCreate opens the form dialog for a new task.
func (vm *ViewModel) OpenCreate() {
	vm.setDialog(Dialog{Mode: DialogCreate})
}

// OpenEdit opens the form dialog on an existing task.
func (vm *ViewModel) OpenEdit(task domain.Task) {
	vm.setDialog(Dialog{Mode: DialogEdit, Task: &task})
}

// CloseDialog closes the form dialog and clears the selection.
func (vm *ViewModel) CloseDialog() {
	vm.setDialog(Dialog{Mode: DialogClosed})
}

func (vm *ViewModel) setDialog(d Dialog) {
	vm.mu.Lock()
	vm.dialog = d
	vm.mu.Unlock()
	vm.emit()
}

// Find returns the task with id from the current list.
func (vm *ViewModel) Find(id string) (domain.Task, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, t := range vm.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (vm *ViewModel) Tasks() []domain.Task {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return append([]domain.Task(nil), vm.tasks...)
}

func (vm *ViewModel) Filter() domain.PriorityFilter {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.filter
}

func (vm *ViewModel) Dialog() Dialog {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.dialog
}

func (vm *ViewModel) User() *domain.User {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.user
}

// Err returns the terminal error of the current subscription, if any.
func (vm *ViewModel) Err() error {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.err
}

// Columns partitions the current list by status.
func (vm *ViewModel) Columns() []Column {
	return Partition(vm.Tasks())
}

func (vm *ViewModel) State() State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	tasks := append([]domain.Task(nil), vm.tasks...)
	return State{
		User:    vm.user,
		Filter:  vm.filter,
		Tasks:   tasks,
		Columns: Partition(tasks),
		Dialog:  vm.dialog,
		Loading: vm.loading,
		Err:     vm.err,
	}
}

func (vm *ViewModel) emit() {
	vm.mu.RLock()
	listeners := append([]func(State){}, vm.listeners...)
	hasUser := vm.user != nil
	vm.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}
	state := vm.State()
	if !hasUser {
		state.Columns = nil
	}
	for _, fn := range listeners {
		fn(state)
	}
}

// Partition splits tasks into the three status columns, keeping their order.
func Partition(tasks []domain.Task) []Column {
	columns := make([]Column, len(domain.Statuses))
	index := make(map[domain.TaskStatus]int, len(domain.Statuses))
	for i, status := range domain.Statuses {
		columns[i] = Column{Status: status, Title: status.Title(), Tasks: []domain.Task{}}
		index[status] = i
	}
	for _, t := range tasks {
		if i, ok := index[t.Status]; ok {
			columns[i].Tasks = append(columns[i].Tasks, t)
		}
	}
	for i := range columns {
		if columns[i].Empty() {
			columns[i].Placeholder = EmptyColumnPlaceholder
		}
	}
	return columns
}
