package form

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
)

var (
	// ErrClosed is returned by operations that need an open form.
	ErrClosed = domain.NewError(domain.ErrCodeInvalid, "task form is not open")
	// ErrSubmitting is returned while an earlier submit is still writing.
	ErrSubmitting = domain.NewError(domain.ErrCodeConflict, "submit already in progress")
)

// Writer persists the form's result.
type Writer interface {
	CreateTask(ctx context.Context, userID string, draft domain.TaskDraft) (*domain.Task, error)
	UpdateTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error)
}

// Suggester proposes a title from a description; "" means no suggestion.
type Suggester interface {
	Suggest(ctx context.Context, description string) string
}

// Mode tells whether the form creates a task or edits one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Values are the editable fields of the form.
type Values struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
}

func defaultValues() Values {
	return Values{Status: domain.StatusTodo, Priority: domain.PriorityMedium}
}

func valuesOf(t domain.Task) Values {
	return Values{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		DueDate:     domain.NormalizeDueDate(t.DueDate),
	}
}

// State is a render snapshot of the form.
type State struct {
	Open         bool                `json:"open"`
	Mode         Mode                `json:"mode,omitempty"`
	TaskID       string              `json:"task_id,omitempty"`
	Values       Values              `json:"values"`
	Errors       []domain.FieldError `json:"errors,omitempty"`
	IsSubmitting bool                `json:"is_submitting"`
	IsSuggesting bool                `json:"is_suggesting"`
}

// Controller drives one task form dialog: field edits, validation, submit
// and the optional title suggestion.
type Controller struct {
	writer    Writer
	suggester Suggester
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	open       bool
	userID     string
	original   *domain.Task
	values     Values
	errs       *domain.ValidationError
	submitting bool
	suggesting bool
	// gen changes on every open and close; results of calls started under an
	// older generation are dropped.
	gen       uint64
	listeners []func(State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source used for due-date checks.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(writer Writer, suggester Suggester, notifier Notifier, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	c := &Controller{
		writer:    writer,
		suggester: suggester,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		values:    defaultValues(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers a render hook.
func (c *Controller) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Open resets the form for userID. A nil task opens it for create, otherwise
// the fields are loaded from task for edit.
func (c *Controller) Open(userID string, task *domain.Task) {
	c.mu.Lock()
	c.gen++
	c.open = true
	c.userID = userID
	c.errs = nil
	c.submitting = false
	c.suggesting = false
	if task != nil {
		t := *task
		c.original = &t
		c.values = valuesOf(t)
	} else {
		c.original = nil
		c.values = defaultValues()
	}
	c.mu.Unlock()
	c.emit()
}

// Close dismisses the form and drops the result of any call still in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	c.reset()
	c.mu.Unlock()
	c.emit()
}

func (c *Controller) reset() {
	c.open = false
	c.original = nil
	c.values = defaultValues()
	c.errs = nil
	c.submitting = false
	c.suggesting = false
}

func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Controller) SetTitle(title string) {
	c.edit(func(v *Values) { v.Title = title })
}

func (c *Controller) SetDescription(description string) {
	c.edit(func(v *Values) { v.Description = description })
}

func (c *Controller) SetStatus(status domain.TaskStatus) {
	c.edit(func(v *Values) { v.Status = status })
}

func (c *Controller) SetPriority(priority domain.TaskPriority) {
	c.edit(func(v *Values) { v.Priority = priority })
}

func (c *Controller) edit(fn func(*Values)) {
	c.mu.Lock()
	fn(&c.values)
	c.mu.Unlock()
	c.emit()
}

// SelectDueDate sets or, with nil, clears the due date. Dates before today
// are rejected.
func (c *Controller) SelectDueDate(due *time.Time) error {
	day := domain.NormalizeDueDate(due)
	if day != nil {
		now := c.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(today) {
			return domain.NewValidationError(domain.FieldError{Field: domain.FieldDueDate, Message: "Due date cannot be in the past."})
		}
	}
	c.edit(func(v *Values) { v.DueDate = day })
	return nil
}

// Validate runs the schema over the current values and records field errors.
func (c *Controller) Validate() *domain.ValidationError {
	c.mu.Lock()
	c.errs = domain.ValidateTaskFields(c.values.Title, c.values.Status, c.values.Priority)
	errs := c.errs
	c.mu.Unlock()
	c.emit()
	return errs
}

// Submit validates the form and writes it: an update with only the changed
// fields when editing, a create with every field otherwise. On success the
// form closes. On failure it stays open with isSubmitting cleared.
func (c *Controller) Submit(ctx context.Context) error {
	write, err := c.BeginSubmit()
	if err != nil {
		return err
	}
	return write(ctx)
}

// BeginSubmit validates the form and marks it submitting in one step, then
// returns the write to run. A second call before that write finishes gets
// ErrSubmitting.
func (c *Controller) BeginSubmit() (func(ctx context.Context) error, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.userID == "" {
		c.mu.Unlock()
		return nil, domain.ErrUnauthorized
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitting
	}
	if errs := domain.ValidateTaskFields(c.values.Title, c.values.Status, c.values.Priority); errs != nil {
		c.errs = errs
		c.mu.Unlock()
		c.emit()
		return nil, errs
	}
	c.errs = nil
	c.submitting = true
	gen := c.gen
	userID := c.userID
	values := c.values
	var original *domain.Task
	if c.original != nil {
		t := *c.original
		original = &t
	}
	c.mu.Unlock()
	c.emit()

	return func(ctx context.Context) error {
		return c.write(ctx, gen, userID, original, values)
	}, nil
}

func (c *Controller) write(ctx context.Context, gen uint64, userID string, original *domain.Task, values Values) error {
	var (
		err     error
		success string
	)
	if original != nil {
		_, err = c.writer.UpdateTask(ctx, userID, original.ID, changedFields(*original, values))
		success = msgUpdated
	} else {
		_, err = c.writer.CreateTask(ctx, userID, domain.TaskDraft{
			Title:       values.Title,
			Description: values.Description,
			Status:      values.Status,
			Priority:    values.Priority,
			DueDate:     domain.NormalizeDueDate(values.DueDate),
		})
		success = msgCreated
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("dropping result of stale form submit", zap.Error(err))
		return err
	}
	c.submitting = false
	if err == nil {
		c.gen++
		c.reset()
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("task form submit failed", zap.String("user_id", userID), zap.Error(err))
		c.notifier.Notify(Notification{Variant: VariantDestructive, Title: msgWriteFailed, Description: msgTryAgain})
	} else {
		c.notifier.Notify(Notification{Variant: VariantDefault, Title: success})
	}
	c.emit()
	return err
}

// SuggestTitle asks for a title built from the description. It needs a
// trimmed description of at least domain.MinSuggestionDescriptionLength runes.
// A non-empty suggestion replaces the title and the fields are validated
// again; an empty one leaves the title alone. It reports whether the title was replaced.
func (c *Controller) SuggestTitle(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return false, ErrClosed
	}
	description := c.values.Description
	if len([]rune(strings.TrimSpace(description))) < domain.MinSuggestionDescriptionLength {
		c.mu.Unlock()
		c.notifier.Notify(Notification{Variant: VariantDestructive, Title: msgDescriptionShort})
		return false, domain.NewValidationError(domain.FieldError{Field: domain.FieldDescription, Message: msgDescriptionShort})
	}
	c.suggesting = true
	gen := c.gen
	c.mu.Unlock()
	c.emit()

	defer func() {
		c.mu.Lock()
		if gen == c.gen {
			c.suggesting = false
		}
		c.mu.Unlock()
		c.emit()
	}()

	title := c.suggester.Suggest(ctx, description)
	if title == "" {
		return false, nil
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false, nil
	}
	c.values.Title = title
	c.errs = domain.ValidateTaskFields(c.values.Title, c.values.Status, c.values.Priority)
	c.mu.Unlock()
	c.notifier.Notify(Notification{Variant: VariantDefault, Title: msgSuggested})
	return true, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := State{
		Open:         c.open,
		Values:       c.values,
		IsSubmitting: c.submitting,
		IsSuggesting: c.suggesting,
	}
	if c.open {
		s.Mode = ModeCreate
		if c.original != nil {
			s.Mode = ModeEdit
			s.TaskID = c.original.ID
		}
	}
	if c.errs != nil {
		s.Errors = append([]domain.FieldError(nil), c.errs.Fields...)
	}
	return s
}

func (c *Controller) emit() {
	c.mu.Lock()
	listeners := append([]func(State){}, c.listeners...)
	state := c.stateLocked()
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}

// changedFields builds a patch holding only the values that differ from the
// task being edited.
func changedFields(original domain.Task, v Values) domain.TaskPatch {
	var patch domain.TaskPatch
	if v.Title != original.Title {
		title := v.Title
		patch.Title = &title
	}
	if v.Description != original.Description {
		description := v.Description
		patch.Description = &description
	}
	if v.Status != original.Status {
		status := v.Status
		patch.Status = &status
	}
	if v.Priority != original.Priority {
		priority := v.Priority
		patch.Priority = &priority
	}
	due := domain.NormalizeDueDate(v.DueDate)
	if !sameDay(due, domain.NormalizeDueDate(original.DueDate)) {
		patch.DueDate = due
		patch.DueDateSet = true
	}
	return patch
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
