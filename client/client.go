package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jonwraymond/tripsync/api"
	"github.com/jonwraymond/tripsync/auth"
	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/config"
	"github.com/jonwraymond/tripsync/gateway"
	"github.com/jonwraymond/tripsync/health"
	"github.com/jonwraymond/tripsync/mutation"
	"github.com/jonwraymond/tripsync/observe"
	"github.com/jonwraymond/tripsync/realtime"
)

// ExpiryWarning is how close to expiry the session check reports degraded.
const ExpiryWarning = time.Minute

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client: closed")

// SessionEndedFunc is told why the session ended, after teardown.
type SessionEndedFunc func(ctx context.Context, reason auth.EndReason)

type options struct {
	observer   observe.Observer
	httpClient *http.Client
	dialer     *websocket.Dialer
	onEnded    SessionEndedFunc
}

// Option configures a Client.
type Option func(*options)

// WithObserver uses obs instead of building one from Config.Observe. The
// client does not shut a supplied observer down.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithHTTPClient sets the client the gateway sends requests with.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithDialer sets the realtime websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithSessionEnded registers the callback run last on every session end.
func WithSessionEnded(fn SessionEndedFunc) Option {
	return func(o *options) { o.onEnded = fn }
}

// Client is the owned context object of the sync core.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Lifecycle: Close ends the session, stops every component and shuts the
//     observer down. It is idempotent.
type Client struct {
	observer    observe.Observer
	ownObserver bool
	logger      observe.Logger

	session    *auth.Session
	gateway    *gateway.Gateway
	store      *cache.Store
	dispatcher *mutation.Dispatcher
	realtime   *realtime.Reconciler
	api        *api.API
	health     *health.Aggregator

	mu     sync.Mutex
	closed bool
}

// New validates cfg and builds a signed-out Client.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{observer: o.observer}
	if c.observer == nil {
		obs, err := observe.NewObserver(ctx, cfg.Observe)
		if err != nil {
			return nil, fmt.Errorf("client: observer: %w", err)
		}
		c.observer, c.ownObserver = obs, true
	}
	mw, err := observe.MiddlewareFromObserver(c.observer)
	if err != nil {
		c.shutdownObserver(ctx)
		return nil, fmt.Errorf("client: middleware: %w", err)
	}
	c.logger = observe.OrNop(c.observer.Logger())

	c.session = auth.NewSession(c.logger)
	c.gateway, err = gateway.New(gateway.Config{
		BaseURL:    cfg.BaseURL,
		AppKey:     cfg.AppKey,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.RequestTimeout,
		HTTPClient: o.httpClient,
	}, c.session, gateway.WithLogger(c.logger), gateway.WithMiddleware(mw))
	if err != nil {
		c.shutdownObserver(ctx)
		return nil, err
	}

	c.store = cache.NewStore(cache.Policy{
		GraceWindow:          cfg.CacheGraceWindow,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
	}, cache.WithLogger(c.logger), cache.WithMiddleware(mw))
	c.dispatcher = mutation.NewDispatcher(c.store, mutation.WithLogger(c.logger), mutation.WithMiddleware(mw))

	c.realtime, err = realtime.New(realtime.Config{
		URL:                   cfg.RealtimeURL,
		Dialer:                o.dialer,
		PingInterval:          cfg.PingInterval,
		ReconnectInitialDelay: cfg.ReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.ReconnectMaxDelay,
		TypingIdle:            cfg.TypingIdleWindow,
		TypingMinInterval:     cfg.TypingMinInterval,
	}, c.store,
		realtime.WithSession(c.session),
		realtime.WithLogger(c.logger),
		realtime.WithMiddleware(mw),
	)
	if err != nil {
		c.dispatcher.Close()
		c.store.Close()
		c.shutdownObserver(ctx)
		return nil, err
	}

	c.api = api.New(c.gateway, c.store, c.dispatcher,
		api.WithAnnouncer(c.realtime),
		api.WithLogger(c.logger),
		api.WithSettle(cfg.InvitationSettle),
	)

	c.health = health.NewAggregator(0)
	c.health.Register(health.SessionChecker(c.session, ExpiryWarning))
	c.health.Register(c.realtime.Checker())

	c.session.OnBegin(func(ctx context.Context, id *auth.Identity) {
		if err := c.realtime.Start(id.UserID); err != nil {
			c.logger.Warn(ctx, "realtime start failed", observe.F("error", err))
		}
	})
	c.session.OnEnd(func(ctx context.Context, _ *auth.Identity, reason auth.EndReason) {
		dropped := c.store.ResetGated()
		c.realtime.Stop()
		c.logger.Debug(ctx, "session teardown",
			observe.F("reason", string(reason)),
			observe.F("entries_dropped", dropped),
		)
		if o.onEnded != nil {
			o.onEnded(ctx, reason)
		}
	})
	return c, nil
}

// Login signs in and starts the realtime connection for the user.
func (c *Client) Login(ctx context.Context, creds gateway.Credentials) (*auth.Identity, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.gateway.Login(ctx, creds)
}

// Resume begins a session from a stored credential without a login call.
func (c *Client) Resume(ctx context.Context, credential, userID string) (*auth.Identity, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.session.Begin(ctx, credential, userID)
}

// Logout revokes the credential and tears the session down.
func (c *Client) Logout(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.gateway.Logout(ctx)
}

// Health runs the session and realtime checks.
func (c *Client) Health(ctx context.Context) health.Report {
	return c.health.Run(ctx)
}

// API returns the query and mutation catalogue.
func (c *Client) API() *api.API { return c.api }

// Session returns the session.
func (c *Client) Session() *auth.Session { return c.session }

// Gateway returns the request gateway.
func (c *Client) Gateway() *gateway.Gateway { return c.gateway }

// Store returns the entity cache.
func (c *Client) Store() *cache.Store { return c.store }

// Realtime returns the realtime reconciler.
func (c *Client) Realtime() *realtime.Reconciler { return c.realtime }

// Close ends the session with auth.EndClosed and releases every component.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.session.End(ctx, auth.EndClosed)
	c.realtime.Close()
	c.dispatcher.Close()
	c.store.Close()
	return c.shutdownObserver(ctx)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) shutdownObserver(ctx context.Context) error {
	if !c.ownObserver {
		return nil
	}
	if err := c.observer.Shutdown(ctx); err != nil {
		return fmt.Errorf("client: observer shutdown: %w", err)
	}
	return nil
}
