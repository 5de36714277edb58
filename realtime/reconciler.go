package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/tripsync/auth"
	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/observe"
)

// maxFrameSize bounds a single inbound message.
const maxFrameSize = 1 << 20

// State is the connection state of a Reconciler.
type State int

const (
	StateStopped State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Config configures a Reconciler.
type Config struct {
	// URL is the ws(s) endpoint. The user id is added as the user_id query
	// parameter. Required.
	URL string

	// Dialer opens connections.
	// Default: websocket.DefaultDialer
	Dialer *websocket.Dialer

	// PingInterval is how often a ping is written on an idle connection.
	// Default: 25s
	PingInterval time.Duration

	// ReadTimeout drops a connection that delivered nothing, pongs included,
	// for this long.
	// Default: 60s
	ReadTimeout time.Duration

	// WriteTimeout bounds every write.
	// Default: 10s
	WriteTimeout time.Duration

	// ReconnectInitialDelay is the delay before the first reconnect attempt.
	// Default: 500ms
	ReconnectInitialDelay time.Duration

	// ReconnectMaxDelay caps the reconnect delay.
	// Default: 30s
	ReconnectMaxDelay time.Duration

	// TypingIdle is how long after the last keystroke typing.stop is sent.
	// Default: 3s
	TypingIdle time.Duration

	// TypingMinInterval is the minimum spacing of outbound typing events
	// per conversation.
	// Default: 2s
	TypingMinInterval time.Duration

	// SendBuffer is the outbound queue length.
	// Default: 64
	SendBuffer int
}

func (c Config) withDefaults() Config {
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReconnectInitialDelay <= 0 {
		c.ReconnectInitialDelay = 500 * time.Millisecond
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.TypingIdle <= 0 {
		c.TypingIdle = 3 * time.Second
	}
	if c.TypingMinInterval <= 0 {
		c.TypingMinInterval = 2 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return c
}

// Reconciler maintains the realtime connection of one user and applies its
// events to a cache.Store.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Identity: one connection per user id. Start with another user id
//     tears the current connection down first.
//   - Lifecycle: Stop blocks until the connection loops have exited.
type Reconciler struct {
	cfg     Config
	url     *url.URL
	backoff Backoff
	store   *cache.Store
	session *auth.Session
	logger  observe.Logger
	mw      *observe.Middleware

	lifecycle sync.Mutex

	mu       sync.Mutex
	state    State
	userID   string
	cancel   context.CancelFunc
	done     chan struct{}
	conn     *connection
	open     string
	closed   bool
	presence map[string]struct{}
	typing   map[string]map[string]struct{}
	typers   map[string]*typer
	changes  chan struct{}
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for connection events.
func WithLogger(l observe.Logger) Option {
	return func(r *Reconciler) { r.logger = observe.OrNop(l) }
}

// WithMiddleware traces connection attempts and counts events.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(r *Reconciler) {
		if mw != nil {
			r.mw = mw
		}
	}
}

// WithSession sends the session credential on connect and stops
// reconnecting once the session no longer belongs to the connected user.
func WithSession(s *auth.Session) Option {
	return func(r *Reconciler) { r.session = s }
}

// New creates a stopped Reconciler.
func New(cfg Config, store *cache.Store, opts ...Option) (*Reconciler, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrMissingURL
	}
	if store == nil {
		return nil, ErrNilStore
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, fmt.Errorf("realtime: invalid url %q", cfg.URL)
	}
	cfg = cfg.withDefaults()

	r := &Reconciler{
		cfg: cfg,
		url: u,
		backoff: Backoff{
			Initial: cfg.ReconnectInitialDelay,
			Max:     cfg.ReconnectMaxDelay,
			Jitter:  true,
		},
		store:    store,
		logger:   observe.NopLogger(),
		mw:       observe.NopMiddleware(),
		presence: make(map[string]struct{}),
		typing:   make(map[string]map[string]struct{}),
		typers:   make(map[string]*typer),
		changes:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start connects as userID and keeps the connection up until Stop.
func (r *Reconciler) Start(userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	running := r.cancel != nil && r.userID == userID && r.state != StateStopped
	r.mu.Unlock()
	if running {
		return nil
	}

	r.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.mu.Lock()
	r.userID = userID
	r.cancel = cancel
	r.done = done
	r.state = StateConnecting
	r.mu.Unlock()
	r.notify()

	go r.run(ctx, userID, done)
	return nil
}

// Stop closes the connection and clears presence and typing state.
func (r *Reconciler) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	r.stop()
}

// Close stops the Reconciler for good.
func (r *Reconciler) Close() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	r.stop()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Reconciler) stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	r.mu.Lock()
	r.state = StateStopped
	r.userID = ""
	r.open = ""
	r.conn = nil
	r.clearPeers()
	r.stopTypers()
	r.mu.Unlock()
	r.notify()
}

func (r *Reconciler) run(ctx context.Context, userID string, done chan struct{}) {
	defer close(done)
	ctx = auth.WithIdentity(ctx, &auth.Identity{UserID: userID})

	attempt := 0
	for {
		ws, err := r.dial(ctx, userID)
		if err == nil {
			attempt = 0
			err = r.serve(ctx, ws)
		}
		r.disconnected()
		if ctx.Err() != nil {
			return
		}
		if !r.identityValid(userID) {
			r.logger.Info(ctx, "realtime stopped, identity ended", observe.F("user_id", userID))
			r.setState(StateStopped)
			return
		}

		attempt++
		delay := r.backoff.Delay(attempt)
		r.setState(StateReconnecting)
		r.mw.Metrics().RecordEvent(ctx, "realtime.reconnect", attribute.Int("attempt", attempt))
		r.logger.Warn(ctx, "realtime connection lost",
			observe.F("error", err),
			observe.F("attempt", attempt),
			observe.F("retry_in_ms", delay.Milliseconds()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Reconciler) identityValid(userID string) bool {
	if r.session == nil {
		return true
	}
	id := r.session.Identity()
	return id != nil && id.UserID == userID
}

func (r *Reconciler) dial(ctx context.Context, userID string) (*websocket.Conn, error) {
	u := *r.url
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if r.session != nil {
		header = r.session.Header()
	}

	var ws *websocket.Conn
	op := observe.Operation{Kind: observe.KindRealtime, Name: "connect"}
	err := r.mw.Run(ctx, op, func(ctx context.Context) error {
		conn, _, err := r.cfg.Dialer.DialContext(ctx, u.String(), header)
		if err != nil {
			return fmt.Errorf("realtime: dial: %w", err)
		}
		ws = conn
		return nil
	})
	return ws, err
}

type connection struct {
	ws   *websocket.Conn
	send chan []byte
}

func (c *connection) enqueue(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// serve runs the read and write loops of ws until either fails or ctx ends.
func (r *Reconciler) serve(ctx context.Context, ws *websocket.Conn) error {
	c := &connection{ws: ws, send: make(chan []byte, r.cfg.SendBuffer)}

	r.mu.Lock()
	r.conn = c
	r.state = StateConnected
	open := r.open
	r.mu.Unlock()
	r.notify()
	defer func() {
		r.mu.Lock()
		if r.conn == c {
			r.conn = nil
		}
		r.mu.Unlock()
	}()

	r.logger.Info(ctx, "realtime connected", observe.F("user_id", auth.UserIDFromContext(ctx)))
	if data, err := encodeFrame(EventPresenceRequest, nil); err == nil {
		_ = c.enqueue(data)
	}
	if open != "" {
		if data, err := encodeFrame(EventConversationJoin, JoinPayload{ConversationID: open}); err == nil {
			_ = c.enqueue(data)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = ws.Close()
		return nil
	})
	g.Go(func() error { return r.writeLoop(gctx, c) })
	g.Go(func() error { return r.readLoop(gctx, c) })
	return g.Wait()
}

func (r *Reconciler) writeLoop(ctx context.Context, c *connection) error {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(r.cfg.WriteTimeout))
			return ctx.Err()
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("realtime: write: %w", err)
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(r.cfg.WriteTimeout)); err != nil {
				return fmt.Errorf("realtime: ping: %w", err)
			}
		}
	}
}

func (r *Reconciler) readLoop(ctx context.Context, c *connection) error {
	c.ws.SetReadLimit(maxFrameSize)
	extend := func() error {
		return c.ws.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
	}
	_ = extend()
	c.ws.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("realtime: read: %w", err)
		}
		_ = extend()
		r.handle(ctx, data)
	}
}

// send queues an outbound event on the live connection.
func (r *Reconciler) send(typ string, payload any) error {
	data, err := encodeFrame(typ, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	c := r.conn
	r.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	return c.enqueue(data)
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.notify()
}

// disconnected forgets everything learned over the dropped connection.
func (r *Reconciler) disconnected() {
	r.mu.Lock()
	r.conn = nil
	r.clearPeers()
	r.mu.Unlock()
	r.notify()
}
