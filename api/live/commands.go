package live

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/usecase/form"
)

func (s *session) register() {
	d := s.dispatcher
	d.RegisterCommand(CmdFilterSet, s.setFilter)
	d.RegisterCommand(CmdFormOpen, s.openForm)
	d.RegisterCommand(CmdFormEdit, s.editTask)
	d.RegisterCommand(CmdFormUpdate, s.updateForm)
	d.RegisterCommand(CmdFormDueDate, s.selectDueDate)
	d.RegisterCommand(CmdFormSuggest, s.suggestTitle)
	d.RegisterCommand(CmdFormSubmit, s.submitForm)
	d.RegisterCommand(CmdFormClose, s.closeForm)
	d.RegisterCommand(CmdTaskDelete, s.deleteTask)
	d.RegisterCommand(CmdTaskMove, s.moveTask)
	d.RegisterCommand(CmdAuthLogout, s.logout)

	d.RegisterQuery(QueryBoardState, func(context.Context, interface{}) (interface{}, error) {
		return Push{Type: PushBoard, Payload: boardOf(s.board.State())}, nil
	})
	d.RegisterQuery(QueryFormState, func(context.Context, interface{}) (interface{}, error) {
		return Push{Type: PushForm, Payload: s.form.State()}, nil
	})
}

func (s *session) userID() (string, error) {
	user := s.identity.Current()
	if user == nil {
		return "", domain.ErrUnauthorized
	}
	return user.ID, nil
}

func (s *session) setFilter(ctx context.Context, payload interface{}) (interface{}, error) {
	var p filterPayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	filter, ok := domain.ParsePriorityFilter(p.Priority)
	if !ok {
		return nil, domain.NewValidationError(domain.FieldError{Field: domain.FieldPriority, Message: "Invalid priority."})
	}
	return nil, s.board.SetFilter(ctx, filter)
}

func (s *session) openForm(context.Context, interface{}) (interface{}, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, err
	}
	s.board.OpenCreate()
	s.form.Open(userID, nil)
	return nil, nil
}

func (s *session) editTask(_ context.Context, payload interface{}) (interface{}, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, err
	}
	var ref taskRef
	if err := decode(payload, &ref); err != nil {
		return nil, err
	}
	task, ok := s.board.Find(ref.ID)
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	s.board.OpenEdit(task)
	s.form.Open(userID, &task)
	return nil, nil
}

func (s *session) updateForm(_ context.Context, payload interface{}) (interface{}, error) {
	if !s.form.IsOpen() {
		return nil, form.ErrClosed
	}
	var p updatePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if p.Title != nil {
		s.form.SetTitle(*p.Title)
	}
	if p.Description != nil {
		s.form.SetDescription(*p.Description)
	}
	if p.Status != nil {
		s.form.SetStatus(*p.Status)
	}
	if p.Priority != nil {
		s.form.SetPriority(*p.Priority)
	}
	return nil, nil
}

func (s *session) selectDueDate(_ context.Context, payload interface{}) (interface{}, error) {
	if !s.form.IsOpen() {
		return nil, form.ErrClosed
	}
	var p dueDatePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	var raw string
	if p.DueDate != nil {
		raw = *p.DueDate
	}
	due, err := domain.ParseDueDate(raw)
	if err != nil {
		return nil, err
	}
	return nil, s.form.SelectDueDate(due)
}

// suggestTitle and submitForm answer immediately; progress shows up in the
// form's flags and the outcome as a notification.
func (s *session) suggestTitle(context.Context, interface{}) (interface{}, error) {
	if !s.form.IsOpen() {
		return nil, form.ErrClosed
	}
	s.detach("suggest", func(ctx context.Context) error {
		_, err := s.form.SuggestTitle(ctx)
		return err
	})
	return nil, nil
}

func (s *session) submitForm(context.Context, interface{}) (interface{}, error) {
	write, err := s.form.BeginSubmit()
	if err != nil {
		return nil, err
	}
	s.detach("submit", write)
	return nil, nil
}

func (s *session) closeForm(context.Context, interface{}) (interface{}, error) {
	s.form.Close()
	s.board.CloseDialog()
	return nil, nil
}

func (s *session) deleteTask(ctx context.Context, payload interface{}) (interface{}, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, err
	}
	var ref taskRef
	if err := decode(payload, &ref); err != nil {
		return nil, err
	}
	if err := s.tasks.DeleteTask(ctx, userID, ref.ID); err != nil {
		s.logger.Warn("live delete failed", zap.String("task_id", ref.ID), zap.Error(err))
		s.notify(form.Notification{Variant: form.VariantDestructive, Title: form.MsgDeleteFailed, Description: form.MsgTryAgain})
		return nil, nil
	}
	if d := s.board.Dialog(); d.Task != nil && d.Task.ID == ref.ID {
		s.form.Close()
	}
	s.notify(form.Notification{Variant: form.VariantDefault, Title: form.MsgDeleted})
	return nil, nil
}

func (s *session) moveTask(ctx context.Context, payload interface{}) (interface{}, error) {
	userID, err := s.userID()
	if err != nil {
		return nil, err
	}
	var p movePayload
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if _, err := s.tasks.UpdateTask(ctx, userID, p.ID, domain.TaskPatch{Status: &p.Status}); err != nil {
		if domain.IsValidationError(err) {
			return nil, err
		}
		s.logger.Warn("live move failed", zap.String("task_id", p.ID), zap.Error(err))
		s.notify(form.Notification{Variant: form.VariantDestructive, Title: form.MsgWriteFailed, Description: form.MsgTryAgain})
	}
	return nil, nil
}

func (s *session) logout(ctx context.Context, _ interface{}) (interface{}, error) {
	if s.accounts != nil && s.sessionID != "" {
		if err := s.accounts.Logout(ctx, s.sessionID); err != nil {
			return nil, err
		}
	}
	s.form.Close()
	s.identity.SignOut()
	return nil, nil
}
