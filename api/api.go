package api

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/entity"
	"github.com/jonwraymond/tripsync/gateway"
	"github.com/jonwraymond/tripsync/mutation"
	"github.com/jonwraymond/tripsync/observe"
)

// DefaultSettle is how long an accepted invitation stays listed as accepted.
const DefaultSettle = 1500 * time.Millisecond

var (
	// ErrMissingID is returned when an entity id argument is empty.
	ErrMissingID = errors.New("api: id is required")

	// ErrEmptyBody is returned when a message or comment has no text.
	ErrEmptyBody = errors.New("api: body is required")

	// ErrNoSession is returned by calls that need the signed-in user.
	ErrNoSession = errors.New("api: no active session")
)

// Announcer broadcasts chat hints over the realtime connection.
// *realtime.Reconciler implements it.
type Announcer interface {
	AnnounceMessage(m entity.Message) error
	StopTyping(conversationID string) error
}

// API binds the catalogue to one gateway, store and dispatcher.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ownership: API does not close the components it is given.
type API struct {
	gw        *gateway.Gateway
	store     *cache.Store
	mutations *mutation.Dispatcher
	announcer Announcer
	logger    observe.Logger
	settle    time.Duration
}

// Option configures an API.
type Option func(*API)

// WithAnnouncer sends message hints after a message is sent.
func WithAnnouncer(an Announcer) Option {
	return func(a *API) { a.announcer = an }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(a *API) { a.logger = observe.OrNop(l) }
}

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(a *API) { a.settle = d }
}

// New creates an API.
func New(gw *gateway.Gateway, store *cache.Store, d *mutation.Dispatcher, opts ...Option) *API {
	a := &API{
		gw:        gw,
		store:     store,
		mutations: d,
		logger:    observe.NopLogger(),
		settle:    DefaultSettle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// selfID returns the signed-in user id.
func (a *API) selfID() (string, error) {
	id := a.gw.Session().Identity()
	if id == nil {
		return "", ErrNoSession
	}
	return id.UserID, nil
}

// Query is a typed handle on one cache entry.
type Query[R any] struct {
	sub *cache.Subscription
}

// Data returns the cached value, if any.
func (q *Query[R]) Data() (R, bool) {
	v, ok := q.sub.Snapshot().Data.(R)
	return v, ok
}

// Snapshot returns the entry state.
func (q *Query[R]) Snapshot() cache.Snapshot {
	return q.sub.Snapshot()
}

// Updates is signalled after every change to the entry.
func (q *Query[R]) Updates() <-chan struct{} {
	return q.sub.Updates()
}

// Wait blocks until the entry settles and returns its value or fetch error.
func (q *Query[R]) Wait(ctx context.Context) (R, error) {
	var zero R
	snap, err := q.sub.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if snap.Err != nil {
		return zero, snap.Err
	}
	v, _ := snap.Data.(R)
	return v, nil
}

// Close releases the handle.
func (q *Query[R]) Close() {
	q.sub.Unsubscribe()
}
