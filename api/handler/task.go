package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase/dashboard"
	"github.com/fastygo/taskboard/usecase/suggest"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

// TaskList is the body of GET /tasks: the ordered list and its status columns.
type TaskList struct {
	Filter  domain.PriorityFilter `json:"filter"`
	Tasks   []domain.Task         `json:"tasks"`
	Columns []dashboard.Column    `json:"columns"`
}

type TaskHandler struct {
	baseHandler
	uc      *taskUC.UseCase
	suggest *suggest.Bridge
}

func NewTaskHandler(uc *taskUC.UseCase, bridge *suggest.Bridge, adapter *httpcontext.Adapter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		suggest:     bridge,
	}
}

// @Summary List tasks
// @Tags tasks
// @Param priority query string false "all, low, medium or high"
// @Router /api/v1/tasks [get]
func (h *TaskHandler) GetTasks(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	priority, ok := domain.ParsePriorityFilter(string(ctx.QueryArgs().Peek("priority")))
	if !ok {
		h.respondInvalid(ctx, "unknown priority filter")
		return
	}
	filter := repository.TaskFilter{
		Priority: priority,
		Limit:    parseInt(string(ctx.QueryArgs().Peek("limit")), 0),
		Offset:   parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	tasks, err := h.uc.ListTasks(stdCtx, userID, filter)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	h.respondSuccess(ctx, http.StatusOK, TaskList{
		Filter:  priority,
		Tasks:   tasks,
		Columns: dashboard.Partition(tasks),
	})
}

// @Summary Get task
// @Tags tasks
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	task, err := h.uc.GetTask(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, task)
}

// @Summary Create task
// @Tags tasks
// @Router /api/v1/tasks [post]
func (h *TaskHandler) CreateTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.TaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	draft, err := validDraft(req)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	created, err := h.uc.CreateTask(stdCtx, userID, draft)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Replace the mutable fields of a task
// @Tags tasks
// @Router /api/v1/tasks/{id} [put]
func (h *TaskHandler) ReplaceTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.TaskRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	draft, err := validDraft(req)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}

	patch := domain.TaskPatch{
		Title:       &draft.Title,
		Description: &draft.Description,
		Status:      &draft.Status,
		Priority:    &draft.Priority,
		DueDate:     draft.DueDate,
		DueDateSet:  true,
	}
	h.applyPatch(ctx, stdCtx, userID, id, patch)
}

// @Summary Update some fields of a task
// @Tags tasks
// @Router /api/v1/tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	var req transport.TaskPatchRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	patch, err := req.Patch()
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	if patch.Title != nil && utf8.RuneCountInString(*patch.Title) < domain.MinTitleLength {
		h.respondError(ctx, stdCtx, domain.NewValidationError(domain.FieldError{
			Field:   domain.FieldTitle,
			Message: "Title must be at least 3 characters.",
		}))
		return
	}
	h.applyPatch(ctx, stdCtx, userID, id, patch)
}

func (h *TaskHandler) applyPatch(ctx *fasthttp.RequestCtx, stdCtx context.Context, userID, id string, patch domain.TaskPatch) {
	updated, err := h.uc.UpdateTask(stdCtx, userID, id, patch)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Delete task
// @Tags tasks
// @Router /api/v1/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}
	id, ok := h.taskID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteTask(stdCtx, userID, id); err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}

// @Summary Suggest a title from a description
// @Tags tasks
// @Router /api/v1/tasks/suggest-title [post]
func (h *TaskHandler) SuggestTitle(ctx *fasthttp.RequestCtx) {
	if h.userID(ctx) == "" {
		return
	}

	var req transport.SuggestTitleRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if utf8.RuneCountInString(strings.TrimSpace(req.Description)) < domain.MinSuggestionDescriptionLength {
		h.respondError(ctx, stdCtx, domain.NewValidationError(domain.FieldError{
			Field:   domain.FieldDescription,
			Message: "Please provide a longer description to suggest a title.",
		}))
		return
	}

	title := h.suggest.Suggest(stdCtx, req.Description)
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"title_suggestion": title})
}

func (h *TaskHandler) taskID(ctx *fasthttp.RequestCtx) (string, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondInvalid(ctx, "missing task id")
		return "", false
	}
	return id, true
}

// validDraft applies the create defaults and the submit-time field rules.
func validDraft(req transport.TaskRequest) (domain.TaskDraft, error) {
	draft, err := req.Draft()
	if err != nil {
		return draft, err
	}
	draft = draft.WithDefaults()
	if vErr := domain.ValidateTaskFields(draft.Title, draft.Status, draft.Priority); vErr != nil {
		return draft, vErr
	}
	return draft, nil
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil && v >= 0 {
		return v
	}
	return fallback
}
