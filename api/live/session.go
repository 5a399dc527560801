package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/usecase"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	"github.com/fastygo/taskboard/usecase/dashboard"
	"github.com/fastygo/taskboard/usecase/form"
)

// Tasks is the task service a live session drives.
type Tasks interface {
	dashboard.Subscriber
	form.Writer
	DeleteTask(ctx context.Context, userID, id string) error
}

// Accounts resolves and signs out the connected user.
type Accounts interface {
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
	Logout(ctx context.Context, sessionID string) error
}

// Settings tune the socket.
type Settings struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
}

// session is one connected dashboard: a board view-model and its task form,
// rendered to the socket after every change.
type session struct {
	conn      *websocket.Conn
	settings  Settings
	tasks     Tasks
	accounts  Accounts
	sessionID string
	logger    *zap.Logger

	identity   *authUC.Identity
	board      *dashboard.ViewModel
	form       *form.Controller
	dispatcher *usecase.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newSession(ctx context.Context, conn *websocket.Conn, user *domain.User, sessionID string, tasks Tasks, accounts Accounts, suggester form.Suggester, settings Settings, logger *zap.Logger) *session {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		conn:      conn,
		settings:  settings,
		tasks:     tasks,
		accounts:  accounts,
		sessionID: sessionID,
		logger:    logger,
		identity:  authUC.NewIdentity(user),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.board = dashboard.New(tasks, s.logger)
	s.form = form.NewController(tasks, suggester, form.NotifierFunc(s.notify), s.logger)
	s.dispatcher = usecase.NewDispatcher()
	s.register()

	s.board.OnChange(func(dashboard.State) { s.render(PushBoard) })
	s.form.OnChange(func(state form.State) {
		if !state.Open && s.board.Dialog().Mode != dashboard.DialogClosed {
			s.board.CloseDialog()
		}
		s.render(PushForm)
	})
	return s
}

// render pushes the current board or form. The state is read under the write
// lock so the last frame on the wire is never older than the last change.
func (s *session) render(kind string) {
	s.write(func() Push {
		if kind == PushForm {
			return Push{Type: PushForm, Payload: s.form.State()}
		}
		return Push{Type: PushBoard, Payload: boardOf(s.board.State())}
	})
}

// run serves the socket until the client leaves or logs out.
func (s *session) run() {
	defer s.close()

	stopBind := s.board.Bind(s.ctx, s.identity)
	defer stopBind()

	if s.settings.ReadLimit > 0 {
		s.conn.SetReadLimit(s.settings.ReadLimit)
	}
	if s.settings.PingInterval > 0 {
		pongWait := 2 * s.settings.PingInterval
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go s.ping()
	}

	for {
		var cmd Command
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.closed.Load() {
				s.logger.Debug("live socket read ended", zap.Error(err))
			}
			return
		}
		s.handle(cmd)
		if s.identity.Current() == nil {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (s *session) handle(cmd Command) {
	result, err := s.dispatcher.Execute(s.ctx, cmd.Type, cmd.Payload)
	if err != nil {
		if errors.Is(err, usecase.ErrNotRegistered) {
			err = domain.NewError(domain.ErrCodeInvalid, "unknown command "+cmd.Type)
		}
		s.send(Push{Type: PushError, Payload: failureOf(cmd, err)})
		return
	}
	if push, ok := result.(Push); ok {
		s.send(push)
	}
}

func (s *session) ping() {
	ticker := time.NewTicker(s.settings.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.writeTimeout())
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("live socket ping failed", zap.Error(err))
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *session) send(push Push) {
	s.write(func() Push { return push })
}

func (s *session) write(build func() Push) {
	if s.closed.Load() {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	push := build()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
	if err := s.conn.WriteJSON(push); err != nil {
		s.logger.Debug("live push failed", zap.String("type", push.Type), zap.Error(err))
	}
}

func (s *session) notify(n form.Notification) {
	s.send(Push{Type: PushNotification, Payload: n})
}

func (s *session) writeTimeout() time.Duration {
	if s.settings.WriteTimeout > 0 {
		return s.settings.WriteTimeout
	}
	return 10 * time.Second
}

// close unmounts the board. Submits already sent keep running detached and
// their results are dropped.
func (s *session) close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.form.Close()
	s.board.Close()
	_ = s.conn.Close()
}

// detach runs fn on its own goroutine with a context that survives the socket.
func (s *session) detach(name string, fn func(ctx context.Context) error) {
	ctx := context.WithoutCancel(s.ctx)
	go func() {
		if err := fn(ctx); err != nil && !domain.IsValidationError(err) && !errors.Is(err, form.ErrClosed) {
			s.logger.Debug("live "+name+" finished with error", zap.Error(err))
		}
	}()
}
