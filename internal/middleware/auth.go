package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/pkg/httpcontext"
	authUC "github.com/fastygo/taskboard/usecase/auth"
)

// HeaderSessionID carries the session behind the access token to handlers.
const HeaderSessionID = "X-Session-ID"

// Authenticator verifies an access token and that its session is still live.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*authUC.Claims, error)
}

// JWTAuth rejects requests without a valid bearer token. The token is read
// from the Authorization header or, for websocket upgrades, the access_token
// query parameter.
func JWTAuth(auth Authenticator, timeout time.Duration, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			// Never trust identity headers sent by the client.
			ctx.Request.Header.Del(httpcontext.HeaderUserID)
			ctx.Request.Header.Del(HeaderSessionID)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			stdCtx, cancel := context.WithTimeout(context.Background(), timeout)
			claims, err := auth.Authenticate(stdCtx, tokenString)
			cancel()
			if err != nil {
				logger.Warn("invalid jwt token", zap.Error(err))
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			ctx.Request.Header.Set(httpcontext.HeaderUserID, claims.UserID)
			ctx.Request.Header.Set(HeaderSessionID, claims.SessionID)
			next(ctx)
		}
	}
}

// SessionID returns the session resolved by JWTAuth.
func SessionID(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Peek(HeaderSessionID))
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return string(ctx.QueryArgs().Peek("access_token"))
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
