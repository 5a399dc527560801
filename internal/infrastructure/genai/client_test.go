package genai

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fastygo/taskboard/domain"
)

func startFlow(t *testing.T, handler fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})
	return &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
}

func TestClient_SuggestTitle(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		status   int
		body     string
		want     string
		wantAuth string
		wantErr  bool
	}{
		{
			name:     "returns the suggestion",
			apiKey:   "key-1",
			status:   fasthttp.StatusOK,
			body:     `{"result":{"titleSuggestion":"Plan launch"}}`,
			want:     "Plan launch",
			wantAuth: "Bearer key-1",
		},
		{
			name:    "flow error envelope",
			status:  fasthttp.StatusOK,
			body:    `{"error":{"status":"INTERNAL","message":"model overloaded"}}`,
			wantErr: true,
		},
		{
			name:    "non 200 status",
			status:  fasthttp.StatusBadGateway,
			body:    `upstream failed`,
			wantErr: true,
		},
		{
			name:    "malformed body",
			status:  fasthttp.StatusOK,
			body:    `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth, gotDescription, gotMethod string
			httpClient := startFlow(t, func(ctx *fasthttp.RequestCtx) {
				gotMethod = string(ctx.Method())
				gotAuth = string(ctx.Request.Header.Peek("Authorization"))
				var req flowRequest
				_ = json.Unmarshal(ctx.PostBody(), &req)
				gotDescription = req.Data.Description
				ctx.SetStatusCode(tt.status)
				ctx.SetBodyString(tt.body)
			})

			client := New("http://flow.local/suggestTaskTitle", tt.apiKey, WithHTTPClient(httpClient))
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			got, err := client.SuggestTitle(ctx, "prepare the launch checklist")

			if tt.wantErr {
				assert.True(t, domain.IsDomainError(err, domain.ErrCodeSuggestion))
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, fasthttp.MethodPost, gotMethod)
			assert.Equal(t, tt.wantAuth, gotAuth)
			assert.Equal(t, "prepare the launch checklist", gotDescription)
		})
	}
}

func TestClient_CanceledContext(t *testing.T) {
	client := New("http://flow.local/suggestTaskTitle", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SuggestTitle(ctx, "prepare the launch checklist")
	assert.ErrorIs(t, err, context.Canceled)
}
