package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// TaskStatus is the column a task lives in.
type TaskStatus string

// TaskPriority ranks a task inside its column.
type TaskPriority string

// PriorityFilter narrows a task listing to one priority; PriorityAll disables it.
type PriorityFilter string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"

	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"

	PriorityAll PriorityFilter = "all"
)

const (
	// MinTitleLength is the shortest title accepted on submit.
	MinTitleLength = 3
	// MinSuggestionDescriptionLength is the shortest trimmed description a title can be suggested from.
	MinSuggestionDescriptionLength = 10
)

// Statuses lists the fixed column order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

// Priorities lists the priorities from lowest to highest.
var Priorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Title returns the column heading for the status.
func (s TaskStatus) Title() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Label returns the badge text for the priority.
func (p TaskPriority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	}
	return string(p)
}

// ParsePriorityFilter maps an empty value to PriorityAll and rejects unknown priorities.
func ParsePriorityFilter(raw string) (PriorityFilter, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == string(PriorityAll) {
		return PriorityAll, true
	}
	if !TaskPriority(raw).Valid() {
		return "", false
	}
	return PriorityFilter(raw), true
}

// Priority returns the filtered priority and whether the filter is active.
func (f PriorityFilter) Priority() (TaskPriority, bool) {
	if f == "" || f == PriorityAll {
		return "", false
	}
	return TaskPriority(f), true
}

// Matches reports whether a task passes the filter.
func (f PriorityFilter) Matches(t Task) bool {
	p, ok := f.Priority()
	return !ok || t.Priority == p
}

// Task represents a user-owned to-do item.
type Task struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TaskDraft is the payload of a create; identity and timestamps are assigned by the store.
type TaskDraft struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date"`
}

// WithDefaults fills in the default status and priority and normalizes the due date.
func (d TaskDraft) WithDefaults() TaskDraft {
	if d.Status == "" {
		d.Status = StatusTodo
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	d.DueDate = NormalizeDueDate(d.DueDate)
	return d
}

// NewTask builds the stored form of a draft.
func (d TaskDraft) NewTask(id, userID string, now time.Time) Task {
	d = d.WithDefaults()
	return Task{
		ID:          id,
		UserID:      userID,
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		Priority:    d.Priority,
		DueDate:     d.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TaskPatch carries the mutable fields of an update. Nil fields are left untouched.
// DueDate is applied only when DueDateSet is true; a nil DueDate then clears it.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	DueDate     *time.Time
	DueDateSet  bool
}

// IsEmpty reports whether the patch changes nothing but the update timestamp.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && !p.DueDateSet
}

// Apply writes the patch onto the task. Timestamps are the store's business.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDateSet {
		t.DueDate = NormalizeDueDate(p.DueDate)
	}
}

// Check rejects enum values outside their sets.
func (p TaskPatch) Check() error {
	if p.Status != nil && !p.Status.Valid() {
		return NewValidationError(FieldError{Field: FieldStatus, Message: "Invalid status."})
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return NewValidationError(FieldError{Field: FieldPriority, Message: "Invalid priority."})
	}
	return nil
}

// NormalizeDueDate reduces a due date to its calendar day at UTC midnight.
func NormalizeDueDate(due *time.Time) *time.Time {
	if due == nil || due.IsZero() {
		return nil
	}
	y, m, d := due.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &day
}

// ParseDueDate accepts a calendar date (2006-01-02) or an RFC3339 timestamp.
// An empty string means no due date.
func ParseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return NormalizeDueDate(&t), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, NewValidationError(FieldError{Field: FieldDueDate, Message: "Invalid date."})
	}
	return NormalizeDueDate(&t), nil
}

// ValidateTaskFields runs the submit-time schema over the task fields.
func ValidateTaskFields(title string, status TaskStatus, priority TaskPriority) *ValidationError {
	var fields []FieldError
	if utf8.RuneCountInString(title) < MinTitleLength {
		fields = append(fields, FieldError{Field: FieldTitle, Message: "Title must be at least 3 characters."})
	}
	if !status.Valid() {
		fields = append(fields, FieldError{Field: FieldStatus, Message: "Invalid status."})
	}
	if !priority.Valid() {
		fields = append(fields, FieldError{Field: FieldPriority, Message: "Invalid priority."})
	}
	if len(fields) == 0 {
		return nil
	}
	return NewValidationError(fields...)
}
