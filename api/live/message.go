package live

import (
	"encoding/json"
	"errors"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/usecase/dashboard"
)

// Command names accepted from the client.
const (
	CmdFilterSet    = "filter.set"
	CmdFormOpen     = "form.open"
	CmdFormEdit     = "form.edit"
	CmdFormUpdate   = "form.update"
	CmdFormDueDate  = "form.due_date"
	CmdFormSuggest  = "form.suggest"
	CmdFormSubmit   = "form.submit"
	CmdFormClose    = "form.close"
	CmdTaskDelete   = "task.delete"
	CmdTaskMove     = "task.move"
	CmdAuthLogout   = "auth.logout"
	QueryBoardState = "board.get"
	QueryFormState  = "form.get"
)

// Push types sent to the client.
const (
	PushBoard        = "board"
	PushForm         = "form"
	PushNotification = "notification"
	PushError        = "error"
)

// Command is one client message.
type Command struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Push is one server message.
type Push struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Board is the payload of a board push.
type Board struct {
	User    *domain.User          `json:"user,omitempty"`
	Filter  domain.PriorityFilter `json:"filter"`
	Columns []dashboard.Column    `json:"columns"`
	Dialog  dashboard.Dialog      `json:"dialog"`
	Options []FilterOption        `json:"options"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
}

// FilterOption is one entry of the priority filter menu.
type FilterOption struct {
	Value domain.PriorityFilter `json:"value"`
	Label string                `json:"label"`
}

func filterOptions() []FilterOption {
	options := []FilterOption{{Value: domain.PriorityAll, Label: "All"}}
	for _, p := range domain.Priorities {
		options = append(options, FilterOption{Value: domain.PriorityFilter(p), Label: p.Label()})
	}
	return options
}

func boardOf(s dashboard.State) Board {
	b := Board{
		User:    s.User,
		Filter:  s.Filter,
		Columns: s.Columns,
		Dialog:  s.Dialog,
		Options: filterOptions(),
		Loading: s.Loading,
	}
	if b.Columns == nil {
		b.Columns = []dashboard.Column{}
	}
	if s.Err != nil {
		b.Error = s.Err.Error()
	}
	return b
}

// Failure is the payload of an error push.
type Failure struct {
	ID      string              `json:"id,omitempty"`
	Command string              `json:"command"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

func failureOf(cmd Command, err error) Failure {
	f := Failure{ID: cmd.ID, Command: cmd.Type, Code: string(domain.ErrCodeInternal), Message: err.Error()}
	var vErr *domain.ValidationError
	var dErr *domain.Error
	switch {
	case errors.As(err, &vErr):
		f.Code = string(domain.ErrCodeInvalid)
		f.Fields = vErr.Fields
	case errors.As(err, &dErr):
		f.Code = string(dErr.Code)
	}
	return f
}

type filterPayload struct {
	Priority string `json:"priority"`
}

type taskRef struct {
	ID string `json:"id"`
}

type movePayload struct {
	ID     string            `json:"id"`
	Status domain.TaskStatus `json:"status"`
}

type updatePayload struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *domain.TaskStatus   `json:"status"`
	Priority    *domain.TaskPriority `json:"priority"`
}

type dueDatePayload struct {
	DueDate *string `json:"due_date"`
}

func decode(payload interface{}, dst interface{}) error {
	raw, _ := payload.(json.RawMessage)
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "invalid payload", err)
	}
	return nil
}
