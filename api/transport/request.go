package transport

import (
	"encoding/json"

	"github.com/fastygo/taskboard/domain"
)

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
}

// TaskRequest is the body of POST /tasks and PUT /tasks/{id}.
type TaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
}

// Draft converts the request into a create payload.
func (r TaskRequest) Draft() (domain.TaskDraft, error) {
	due, err := domain.ParseDueDate(r.DueDate)
	if err != nil {
		return domain.TaskDraft{}, err
	}
	return domain.TaskDraft{
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.TaskStatus(r.Status),
		Priority:    domain.TaskPriority(r.Priority),
		DueDate:     due,
	}, nil
}

// TaskPatchRequest is the body of PATCH /tasks/{id}. Absent keys are left
// untouched; "due_date": null or "" clears the due date.
type TaskPatchRequest map[string]json.RawMessage

// Patch converts the request into a partial update.
func (r TaskPatchRequest) Patch() (domain.TaskPatch, error) {
	var patch domain.TaskPatch
	for key, raw := range r {
		switch key {
		case domain.FieldTitle:
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return patch, invalidField(key)
			}
			patch.Title = &v
		case domain.FieldDescription:
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return patch, invalidField(key)
			}
			patch.Description = &v
		case domain.FieldStatus:
			var v domain.TaskStatus
			if err := json.Unmarshal(raw, &v); err != nil {
				return patch, invalidField(key)
			}
			patch.Status = &v
		case domain.FieldPriority:
			var v domain.TaskPriority
			if err := json.Unmarshal(raw, &v); err != nil {
				return patch, invalidField(key)
			}
			patch.Priority = &v
		case domain.FieldDueDate:
			var v *string
			if err := json.Unmarshal(raw, &v); err != nil {
				return patch, invalidField(key)
			}
			patch.DueDateSet = true
			if v != nil {
				due, err := domain.ParseDueDate(*v)
				if err != nil {
					return patch, err
				}
				patch.DueDate = due
			}
		default:
			return patch, domain.NewValidationError(domain.FieldError{Field: key, Message: "Field cannot be changed."})
		}
	}
	return patch, nil
}

func invalidField(field string) error {
	return domain.NewValidationError(domain.FieldError{Field: field, Message: "Invalid value."})
}

type SuggestTitleRequest struct {
	Description string `json:"description"`
}
