package live

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/boltdb"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/repository"
	boltrepo "github.com/fastygo/taskboard/repository/bolt"
	"github.com/fastygo/taskboard/repository/memory"
	"github.com/fastygo/taskboard/usecase/dashboard"
	"github.com/fastygo/taskboard/usecase/form"
	"github.com/fastygo/taskboard/usecase/suggest"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

type stubAccounts struct {
	mu        sync.Mutex
	loggedOut []string
}

func (a *stubAccounts) CurrentUser(_ context.Context, userID string) (*domain.User, error) {
	if userID != "alice" {
		return nil, domain.ErrUserNotFound
	}
	return &domain.User{ID: "alice", Email: "alice@example.com"}, nil
}

func (a *stubAccounts) Logout(_ context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedOut = append(a.loggedOut, sessionID)
	return nil
}

func (a *stubAccounts) sessions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.loggedOut...)
}

type titleFlow string

func (f titleFlow) SuggestTitle(context.Context, string) (string, error) {
	return string(f), nil
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, userID string, accounts Accounts) (*client, *taskUC.UseCase) {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tasks := taskUC.New(boltrepo.NewTaskRepository(db, nil), memory.NewChangeFeed(), nil)
	h := NewHandler(tasks, accounts, suggest.NewBridge(titleFlow("Plan launch"), nil), httpcontext.NewAdapter(time.Second), Settings{
		PingInterval: time.Minute,
		WriteTimeout: time.Second,
		ReadLimit:    64 * 1024,
	}, nil)

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		ctx.Request.Header.Set(httpcontext.HeaderUserID, userID)
		ctx.Request.Header.Set(middleware.HeaderSessionID, "sess-1")
		h.Serve(ctx)
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	dialer := websocket.Dialer{NetDial: func(string, string) (net.Conn, error) { return ln.Dial() }}
	conn, resp, err := dialer.Dial("ws://live.test/api/v1/live", nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, tasks
	}
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}, tasks
}

func (c *client) send(typ string, payload interface{}) {
	c.t.Helper()
	cmd := map[string]interface{}{"type": typ}
	if payload != nil {
		cmd["payload"] = payload
	}
	require.NoError(c.t, c.conn.WriteJSON(cmd))
}

// await reads frames until one of typ satisfies match.
func (c *client) await(typ string, match func(json.RawMessage) bool) json.RawMessage {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(c.t, c.conn.ReadJSON(&f), "waiting for %s", typ)
		if f.Type == typ && (match == nil || match(f.Payload)) {
			return f.Payload
		}
	}
}

func (c *client) awaitBoard(match func(Board) bool) Board {
	c.t.Helper()
	var board Board
	c.await(PushBoard, func(raw json.RawMessage) bool {
		board = Board{}
		return json.Unmarshal(raw, &board) == nil && match(board)
	})
	return board
}

func (c *client) awaitNotification(title string) form.Notification {
	c.t.Helper()
	var n form.Notification
	c.await(PushNotification, func(raw json.RawMessage) bool {
		n = form.Notification{}
		return json.Unmarshal(raw, &n) == nil && n.Title == title
	})
	return n
}

func column(b Board, status domain.TaskStatus) dashboard.Column {
	for _, col := range b.Columns {
		if col.Status == status {
			return col
		}
	}
	return dashboard.Column{}
}

func TestSession_CreateMoveDelete(t *testing.T) {
	accounts := &stubAccounts{}
	c, tasks := dial(t, "alice", accounts)
	require.NotNil(t, c)

	_, err := tasks.CreateTask(context.Background(), "alice", domain.TaskDraft{Title: "Write brief"})
	require.NoError(t, err)
	c.awaitBoard(func(b Board) bool { return len(column(b, domain.StatusTodo).Tasks) == 1 })

	c.send(CmdFormOpen, nil)
	c.send(CmdFormUpdate, map[string]string{"title": "Plan launch", "priority": "high"})
	c.send(CmdFormSubmit, nil)
	c.awaitNotification("Task created successfully!")

	board := c.awaitBoard(func(b Board) bool { return len(column(b, domain.StatusTodo).Tasks) == 2 })
	created := column(board, domain.StatusTodo).Tasks[0]
	assert.Equal(t, "Plan launch", created.Title, "newest task first")
	assert.Equal(t, domain.PriorityHigh, created.Priority)
	c.awaitBoard(func(b Board) bool { return b.Dialog.Mode == dashboard.DialogClosed })

	c.send(CmdTaskMove, map[string]string{"id": created.ID, "status": "done"})
	c.awaitBoard(func(b Board) bool {
		done := column(b, domain.StatusDone)
		return len(done.Tasks) == 1 && done.Tasks[0].ID == created.ID
	})

	for _, task := range column(board, domain.StatusTodo).Tasks {
		c.send(CmdTaskDelete, map[string]string{"id": task.ID})
		c.awaitNotification("Task deleted successfully!")
	}
	board = c.awaitBoard(func(b Board) bool {
		for _, col := range b.Columns {
			if !col.Empty() {
				return false
			}
		}
		return len(b.Columns) == 3
	})
	assert.Equal(t, "No tasks here.", column(board, domain.StatusTodo).Placeholder)
}

func TestSession_FormCommands(t *testing.T) {
	c, _ := dial(t, "alice", &stubAccounts{})
	require.NotNil(t, c)
	board := c.awaitBoard(func(b Board) bool { return len(b.Columns) == 3 })
	require.Len(t, board.Options, 4)
	assert.Equal(t, "All", board.Options[0].Label)
	assert.Equal(t, "High", board.Options[3].Label)

	c.send(CmdFormUpdate, map[string]string{"title": "x"})
	raw := c.await(PushError, nil)
	var failure Failure
	require.NoError(t, json.Unmarshal(raw, &failure))
	assert.Equal(t, CmdFormUpdate, failure.Command)
	assert.Equal(t, string(domain.ErrCodeInvalid), failure.Code)

	c.send("task.archive", nil)
	raw = c.await(PushError, nil)
	require.NoError(t, json.Unmarshal(raw, &failure))
	assert.Equal(t, "task.archive", failure.Command)

	c.send(CmdFormOpen, nil)
	c.awaitBoard(func(b Board) bool { return b.Dialog.Mode == dashboard.DialogCreate })

	c.send(CmdFormUpdate, map[string]string{"title": "ab"})
	c.send(CmdFormSubmit, nil)
	c.await(PushForm, func(raw json.RawMessage) bool {
		var s form.State
		return json.Unmarshal(raw, &s) == nil && len(s.Errors) == 1 && s.Errors[0].Field == domain.FieldTitle
	})

	c.send(CmdFormUpdate, map[string]string{"description": "Outline every launch step"})
	c.send(CmdFormSuggest, nil)
	c.awaitNotification("Title suggestion applied!")
	c.await(PushForm, func(raw json.RawMessage) bool {
		var s form.State
		return json.Unmarshal(raw, &s) == nil && s.Values.Title == "Plan launch" && len(s.Errors) == 0 && !s.IsSuggesting
	})

	c.send(CmdFormDueDate, map[string]string{"due_date": "2000-01-01"})
	raw = c.await(PushError, nil)
	require.NoError(t, json.Unmarshal(raw, &failure))
	require.Len(t, failure.Fields, 1)
	assert.Equal(t, domain.FieldDueDate, failure.Fields[0].Field)

	c.send(CmdFilterSet, map[string]string{"priority": "high"})
	c.awaitBoard(func(b Board) bool { return b.Filter == domain.PriorityFilter(domain.PriorityHigh) })

	c.send(CmdFormClose, nil)
	c.awaitBoard(func(b Board) bool { return b.Dialog.Mode == dashboard.DialogClosed })
}

func TestSession_DoubleSubmitCreatesOneTask(t *testing.T) {
	c, tasks := dial(t, "alice", &stubAccounts{})
	require.NotNil(t, c)
	c.awaitBoard(func(b Board) bool { return len(b.Columns) == 3 })

	c.send(CmdFormOpen, nil)
	c.send(CmdFormUpdate, map[string]string{"title": "Plan launch"})
	c.send(CmdFormSubmit, nil)
	c.send(CmdFormSubmit, nil)

	var (
		failure Failure
		created bool
	)
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for failure.Command == "" || !created {
		var f frame
		require.NoError(t, c.conn.ReadJSON(&f))
		switch f.Type {
		case PushError:
			require.NoError(t, json.Unmarshal(f.Payload, &failure))
		case PushBoard:
			var b Board
			require.NoError(t, json.Unmarshal(f.Payload, &b))
			created = created || len(column(b, domain.StatusTodo).Tasks) == 1
		}
	}
	assert.Equal(t, CmdFormSubmit, failure.Command)
	assert.Contains(t, []string{string(domain.ErrCodeConflict), string(domain.ErrCodeInvalid)}, failure.Code)

	list, err := tasks.ListTasks(context.Background(), "alice", repository.TaskFilter{Priority: domain.PriorityAll})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSession_Logout(t *testing.T) {
	accounts := &stubAccounts{}
	c, _ := dial(t, "alice", accounts)
	require.NotNil(t, c)
	c.awaitBoard(func(b Board) bool { return b.User != nil })

	c.send(CmdAuthLogout, nil)

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}
	assert.Equal(t, []string{"sess-1"}, accounts.sessions())
}

func TestHandler_RejectsUnknownUser(t *testing.T) {
	c, _ := dial(t, "mallory", &stubAccounts{})
	assert.Nil(t, c, "upgrade is refused")
}
