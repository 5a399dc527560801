package live

import (
	"net/http"

	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	appLogger "github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/usecase/form"
)

// Handler upgrades authenticated requests to a live dashboard socket.
type Handler struct {
	upgrader  websocket.FastHTTPUpgrader
	tasks     Tasks
	accounts  Accounts
	suggester form.Suggester
	adapter   *httpcontext.Adapter
	settings  Settings
	logger    *zap.Logger
}

func NewHandler(tasks Tasks, accounts Accounts, suggester form.Suggester, adapter *httpcontext.Adapter, settings Settings, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return &Handler{
		upgrader: websocket.FastHTTPUpgrader{
			CheckOrigin: func(*fasthttp.RequestCtx) bool { return true },
		},
		tasks:     tasks,
		accounts:  accounts,
		suggester: suggester,
		adapter:   adapter,
		settings:  settings,
		logger:    logger,
	}
}

// @Summary Live dashboard websocket
// @Tags tasks
// @Router /api/v1/live [get]
func (h *Handler) Serve(ctx *fasthttp.RequestCtx) {
	userID := httpcontext.UserID(ctx)
	if userID == "" {
		h.reject(ctx, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}
	sessionID := middleware.SessionID(ctx)

	lookupCtx, cancelLookup := h.adapter.Attach(ctx)
	user, err := h.accounts.CurrentUser(lookupCtx, userID)
	cancelLookup()
	if err != nil {
		h.reject(ctx, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}

	// The request context must not be touched once the upgrade handler runs.
	stdCtx, cancel := h.adapter.AttachLong(ctx)
	logger := appLogger.WithRequestID(stdCtx, h.logger)

	err = h.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		defer cancel()
		logger.Info("live session opened")
		s := newSession(stdCtx, conn, user, sessionID, h.tasks, h.accounts, h.suggester, h.settings, logger)
		s.run()
		logger.Info("live session closed")
	})
	if err != nil {
		cancel()
		logger.Warn("live upgrade failed", zap.Error(err))
	}
}

func (h *Handler) reject(ctx *fasthttp.RequestCtx, status int, err error) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBodyString(transport.NewError(string(domain.ErrCodeUnauthorized), err.Error(), nil).String())
}
