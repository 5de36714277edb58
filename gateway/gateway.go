package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/jonwraymond/tripsync/auth"
	"github.com/jonwraymond/tripsync/observe"
)

const (
	// DefaultTimeout bounds a single round-trip.
	DefaultTimeout = 30 * time.Second

	// AppKeyHeader carries Config.AppKey.
	AppKeyHeader = "X-App-Key"

	LoginPath   = "/auth/login"
	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
)

// Config configures a Gateway.
type Config struct {
	// BaseURL is the API origin every Request.Path is joined to. Required.
	BaseURL string

	// AppKey is sent as X-App-Key on every request when set.
	AppKey string

	// UserAgent overrides the User-Agent header when set.
	UserAgent string

	// Timeout bounds each round-trip, including replays.
	// Default: 30s
	Timeout time.Duration

	// HTTPClient performs the round-trips.
	// Default: a client with a public-suffix aware cookie jar, which keeps
	// the refresh cookie issued at login.
	HTTPClient *http.Client
}

// Request is one call against the API.
type Request struct {
	// Method defaults to GET.
	Method string
	// Path is joined to Config.BaseURL.
	Path  string
	Query url.Values
	// Body is JSON encoded when non-nil. []byte and json.RawMessage are sent as-is.
	Body   any
	Header http.Header
	// Name labels the request in traces and metrics.
	// Default: "<METHOD> <Path>"
	Name string
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}

// Gateway sends requests on behalf of one auth.Session.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Auth: at most one refresh call is outstanding at any time. Requests
//     that fail with 401 while it runs are replayed after it succeeds, once
//     each, in the order they failed.
//   - Errors: non-auth failures are returned as *ServerError or *NetworkError
//     and never retried.
type Gateway struct {
	cfg     Config
	base    *url.URL
	client  *http.Client
	session *auth.Session
	logger  observe.Logger
	mw      *observe.Middleware

	mu         sync.Mutex
	refreshing bool
	waiters    []*waiter
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for refresh and logout events.
func WithLogger(l observe.Logger) Option {
	return func(g *Gateway) { g.logger = observe.OrNop(l) }
}

// WithMiddleware wraps every round-trip with tracing and metrics.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(g *Gateway) {
		if mw != nil {
			g.mw = mw
		}
	}
}

// New creates a Gateway bound to session.
func New(cfg Config, session *auth.Session, opts ...Option) (*Gateway, error) {
	if session == nil {
		return nil, ErrNilSession
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("gateway: cookie jar: %w", err)
		}
		cfg.HTTPClient = &http.Client{Jar: jar}
	}

	g := &Gateway{
		cfg:     cfg,
		base:    base,
		client:  cfg.HTTPClient,
		session: session,
		logger:  observe.NopLogger(),
		mw:      observe.NopMiddleware(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Session returns the session the gateway authenticates with.
func (g *Gateway) Session() *auth.Session { return g.session }

// Do sends req. A 401 is recovered through the refresh protocol unless ctx
// was marked with auth.WithoutCredential.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	c, err := newCall(req)
	if err != nil {
		return nil, err
	}

	if auth.SkipsCredential(ctx) {
		return g.send(ctx, c, "")
	}

	sent, _ := g.session.Credential()
	resp, err := g.send(ctx, c, sent.Token)
	if StatusOf(err) != http.StatusUnauthorized {
		return resp, err
	}
	return g.recover(ctx, c, &sent)
}

// call is a request with its body encoded once, so it can be replayed.
type call struct {
	req  Request
	body []byte
}

func newCall(req Request) (*call, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Name == "" {
		req.Name = req.Method + " " + req.Path
	}
	c := &call{req: req}
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		c.body = b
	case json.RawMessage:
		c.body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode %s: %w", req.Name, err)
		}
		c.body = data
	}
	return c, nil
}

// send performs one round-trip. Non-2xx replies are returned as *ServerError.
func (g *Gateway) send(ctx context.Context, c *call, token string) (*Response, error) {
	var resp *Response
	op := observe.Operation{Kind: observe.KindRequest, Name: c.req.Name}
	err := g.mw.Run(ctx, op, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		httpReq, err := g.newRequest(ctx, c, token)
		if err != nil {
			return err
		}
		res, err := g.client.Do(httpReq)
		if err != nil {
			return &NetworkError{Op: c.req.Name, Err: err}
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return &NetworkError{Op: c.req.Name, Err: err}
		}
		if res.StatusCode < 200 || res.StatusCode > 299 {
			return &ServerError{Status: res.StatusCode, Body: body, Message: errorMessage(body)}
		}
		resp = &Response{Status: res.StatusCode, Header: res.Header, Body: body}
		return nil
	})
	return resp, err
}

func (g *Gateway) newRequest(ctx context.Context, c *call, token string) (*http.Request, error) {
	u := g.base.JoinPath(c.req.Path)
	if len(c.req.Query) > 0 {
		u.RawQuery = c.req.Query.Encode()
	}

	var body io.Reader
	if c.body != nil {
		body = bytes.NewReader(c.body)
	}
	req, err := http.NewRequestWithContext(ctx, c.req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build %s: %w", c.req.Name, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.cfg.AppKey != "" {
		req.Header.Set(AppKeyHeader, g.cfg.AppKey)
	}
	if g.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", g.cfg.UserAgent)
	}
	for k, vs := range c.req.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	auth.Attach(req, token)
	return req, nil
}

// errorMessage extracts a human readable message from an error body: the
// "message" or "error" field of a JSON object, or the trimmed text.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return ""
	}
	return text
}
