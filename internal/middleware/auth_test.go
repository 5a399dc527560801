package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	authUC "github.com/fastygo/taskboard/usecase/auth"
)

type stubAuthenticator map[string]*authUC.Claims

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*authUC.Claims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, domain.ErrUnauthorized
}

func TestJWTAuth(t *testing.T) {
	auth := stubAuthenticator{"good": {UserID: "u1", SessionID: "s1"}}

	tests := []struct {
		name       string
		header     string
		query      string
		spoofUser  string
		wantStatus int
		wantUser   string
	}{
		{name: "bearer header", header: "Bearer good", wantStatus: fasthttp.StatusOK, wantUser: "u1"},
		{name: "raw header", header: "good", wantStatus: fasthttp.StatusOK, wantUser: "u1"},
		{name: "query parameter", query: "access_token=good", wantStatus: fasthttp.StatusOK, wantUser: "u1"},
		{name: "missing token", wantStatus: fasthttp.StatusUnauthorized},
		{name: "revoked token", header: "Bearer stale", wantStatus: fasthttp.StatusUnauthorized},
		{name: "spoofed user header dropped", spoofUser: "admin", wantStatus: fasthttp.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser, gotSession string
			next := func(ctx *fasthttp.RequestCtx) {
				gotUser = httpcontext.UserID(ctx)
				gotSession = SessionID(ctx)
				ctx.SetStatusCode(fasthttp.StatusOK)
			}

			var ctx fasthttp.RequestCtx
			ctx.Request.SetRequestURI("/api/v1/tasks?" + tt.query)
			if tt.header != "" {
				ctx.Request.Header.Set("Authorization", tt.header)
			}
			if tt.spoofUser != "" {
				ctx.Request.Header.Set(httpcontext.HeaderUserID, tt.spoofUser)
			}

			JWTAuth(auth, 0, nil)(next)(&ctx)

			assert.Equal(t, tt.wantStatus, ctx.Response.StatusCode())
			assert.Equal(t, tt.wantUser, gotUser)
			if tt.wantUser != "" {
				assert.Equal(t, "s1", gotSession)
			}
		})
	}
}
