package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

type RequestInterceptor func(req *resty.Request) error

// ResponseInterceptor sees every completed call. It returns the error the
// caller should receive, normally err unchanged.
type ResponseInterceptor func(resp *resty.Response, err error) error

// Backend holds the connection pool shared by every visitor's Client.
type Backend struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewBackend(baseURL string, timeout time.Duration, logger zerolog.Logger) *Backend {
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		logger: logger,
	}
}

// Client is one visitor's view of the backend with its own interceptor chain.
type Client struct {
	rest   *resty.Client
	logger zerolog.Logger

	mu       sync.Mutex
	nextID   int
	requests map[int]RequestInterceptor
	replies  map[int]ResponseInterceptor
}

func (b *Backend) Client() *Client {
	rest := resty.NewWithClient(b.http).
		SetBaseURL(b.baseURL).
		SetHeader("Accept", "application/json")
	return &Client{
		rest:     rest,
		logger:   b.logger,
		requests: make(map[int]RequestInterceptor),
		replies:  make(map[int]ResponseInterceptor),
	}
}

func (c *Client) UseRequest(fn RequestInterceptor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.requests[c.nextID] = fn
	return c.nextID
}

func (c *Client) UseResponse(fn ResponseInterceptor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.replies[c.nextID] = fn
	return c.nextID
}

// Eject removes a previously registered interceptor. Unknown ids are ignored.
func (c *Client) Eject(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.requests, id)
	delete(c.replies, id)
}

func (c *Client) chains() ([]RequestInterceptor, []ResponseInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reqIDs := make([]int, 0, len(c.requests))
	for id := range c.requests {
		reqIDs = append(reqIDs, id)
	}
	respIDs := make([]int, 0, len(c.replies))
	for id := range c.replies {
		respIDs = append(respIDs, id)
	}
	sort.Ints(reqIDs)
	sort.Ints(respIDs)

	reqs := make([]RequestInterceptor, len(reqIDs))
	for i, id := range reqIDs {
		reqs[i] = c.requests[id]
	}
	resps := make([]ResponseInterceptor, len(respIDs))
	for i, id := range respIDs {
		resps[i] = c.replies[id]
	}
	return reqs, resps
}

type call struct {
	method string
	path   string
	query  map[string]string
	body   interface{}
	header map[string]string
	out    interface{}
}

func (c *Client) do(ctx context.Context, cl call) error {
	var errBody errorBody
	req := c.rest.R().SetContext(ctx).SetError(&errBody)
	if cl.out != nil {
		req.SetResult(cl.out)
	}
	if cl.body != nil {
		req.SetBody(cl.body)
	}
	if len(cl.query) > 0 {
		req.SetQueryParams(cl.query)
	}
	if len(cl.header) > 0 {
		req.SetHeaders(cl.header)
	}

	reqChain, respChain := c.chains()
	for _, fn := range reqChain {
		if err := fn(req); err != nil {
			return fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
		}
	}

	resp, err := req.Execute(cl.method, cl.path)
	switch {
	case err != nil:
		err = fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	case resp.IsError():
		err = &Error{
			Method:  cl.method,
			Path:    cl.path,
			Status:  resp.StatusCode(),
			Message: errBody.text(),
		}
	}

	for _, fn := range respChain {
		err = fn(resp, err)
	}

	if err != nil {
		c.logger.Debug().Err(err).Str("method", cl.method).Str("path", cl.path).Msg("Backend call failed")
	}
	return err
}
