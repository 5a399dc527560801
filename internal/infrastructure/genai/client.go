package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskboard/domain"
)

type flowRequest struct {
	Data struct {
		Description string `json:"description"`
	} `json:"data"`
}

type flowResponse struct {
	Result *struct {
		TitleSuggestion string `json:"titleSuggestion"`
	} `json:"result"`
	Error *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls a deployed title suggestion flow over HTTP.
type Client struct {
	url    string
	apiKey string
	http   *fasthttp.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying fasthttp client.
func WithHTTPClient(c *fasthttp.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func New(url, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:    url,
		apiKey: apiKey,
		http: &fasthttp.Client{
			Name:                "taskboard-genai",
			MaxIdleConnDuration: time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SuggestTitle posts {"data":{"description":...}} to the flow and returns
// result.titleSuggestion. Every failure is a domain suggestion error.
func (c *Client) SuggestTitle(ctx context.Context, description string) (string, error) {
	var in flowRequest
	in.Data.Description = description
	body, err := json.Marshal(in)
	if err != nil {
		return "", domain.NewSuggestionError(err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.SetBodyRaw(body)

	if err := c.do(ctx, req, resp); err != nil {
		return "", domain.NewSuggestionError(err)
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return "", domain.NewSuggestionError(fmt.Errorf("flow returned status %d", status))
	}

	var out flowResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", domain.NewSuggestionError(err)
	}
	if out.Error != nil {
		return "", domain.NewSuggestionError(fmt.Errorf("flow error %s: %s", out.Error.Status, out.Error.Message))
	}
	if out.Result == nil {
		return "", domain.NewSuggestionError(fmt.Errorf("flow response has no result"))
	}
	return out.Result.TitleSuggestion, nil
}

// Ping checks that the flow host accepts connections.
func (c *Client) Ping(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodOptions)
	return c.do(ctx, req, resp)
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return c.http.DoDeadline(req, resp, deadline)
	}
	return c.http.Do(req, resp)
}
