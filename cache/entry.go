package cache

import (
	"context"
	"time"
)

// Status is the fetch state of an entry.
type Status int

const (
	// StatusIdle means no fetch has been issued, or the entry was reset.
	StatusIdle Status = iota
	// StatusPending means the first fetch is in flight and no data exists yet.
	StatusPending
	// StatusSuccess means Data holds the latest committed result.
	StatusSuccess
	// StatusError means the latest committed fetch failed. Earlier data is kept.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Result is what a fetch produces: the data plus the tags it depends on.
type Result struct {
	Data any
	Tags []Tag
}

// FetchFunc loads the data for a query.
type FetchFunc func(ctx context.Context) (Result, error)

// MergeFunc combines the committed result with an incoming one.
// current.Data is nil when the entry holds no data yet.
type MergeFunc func(current, incoming Result) Result

// PatchFunc returns a modified copy of data and whether anything changed.
// It must not mutate data in place and must not call back into the Store.
type PatchFunc func(data any) (any, bool)

// Query declares a data requirement.
type Query struct {
	Key   Key
	Fetch FetchFunc

	// Merge is applied when the fetch commits. Nil replaces the data.
	Merge MergeFunc

	// Public entries survive ResetGated. Everything else is identity-gated.
	Public bool
}

// Snapshot is a point-in-time view of an entry.
type Snapshot struct {
	Key         Key
	Status      Status
	Data        any
	Err         error
	Tags        []Tag
	Stale       bool
	Fetching    bool
	Subscribers int
	UpdatedAt   time.Time
}

// Settled reports whether the entry has a committed outcome and nothing in flight.
func (s Snapshot) Settled() bool {
	return (s.Status == StatusSuccess || s.Status == StatusError) && !s.Fetching
}

type fetchOutcome struct {
	result Result
	err    error
	merge  MergeFunc
	call   *Call
}

type entry struct {
	key    Key
	fetch  FetchFunc
	merge  MergeFunc
	public bool

	status    Status
	data      any
	err       error
	tags      []Tag
	updatedAt time.Time

	stale   bool
	staleAt uint64 // last sequence issued when the entry was marked stale

	issued    uint64
	committed uint64
	inflight  int
	results   map[uint64]fetchOutcome
	ownCall   *Call

	subs       map[uint64]*Subscription
	evictTimer *time.Timer
	removed    bool
}

func newEntry(key Key) *entry {
	return &entry{
		key:     key,
		results: make(map[uint64]fetchOutcome),
		subs:    make(map[uint64]*Subscription),
	}
}

// needsRefetch reports whether the entry is stale and no fetch was issued since.
func (e *entry) needsRefetch() bool {
	return e.stale && e.issued <= e.staleAt
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:         e.key,
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		Tags:        append([]Tag(nil), e.tags...),
		Stale:       e.stale,
		Fetching:    e.inflight > 0,
		Subscribers: len(e.subs),
		UpdatedAt:   e.updatedAt,
	}
}

func (e *entry) notify() {
	for _, sub := range e.subs {
		select {
		case sub.updates <- struct{}{}:
		default:
		}
	}
}

// Call tracks one issued fetch until its result is committed or discarded.
type Call struct {
	done chan struct{}
	err  error
}

func newCall() *Call {
	return &Call{done: make(chan struct{})}
}

// Done is closed once the result has been committed or discarded.
func (c *Call) Done() <-chan struct{} { return c.done }

// Err returns the fetch error, ErrDiscarded, or nil. Valid after Done is closed.
func (c *Call) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the call settles or ctx is done.
func (c *Call) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
