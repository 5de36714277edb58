package cache

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/tripsync/observe"
)

// Store is the entity cache.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use. Entry state is
//     serialized under one lock; fetches run outside it.
//   - Ordering: fetch results for one entry commit in issuance order.
//   - Errors: a failed fetch leaves the entry in StatusError and is not retried.
type Store struct {
	policy Policy
	logger observe.Logger
	mw     *observe.Middleware
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	entries   map[Key]*entry
	index     map[Tag]map[Key]struct{}
	nextSubID uint64
	closed    bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for eviction, discard and reset events.
func WithLogger(l observe.Logger) Option {
	return func(s *Store) { s.logger = observe.OrNop(l) }
}

// WithMiddleware wraps every fetch with tracing and metrics.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(s *Store) {
		if mw != nil {
			s.mw = mw
		}
	}
}

// NewStore creates an empty Store.
func NewStore(policy Policy, opts ...Option) *Store {
	policy = policy.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		policy:  policy,
		logger:  observe.NopLogger(),
		mw:      observe.NopMiddleware(),
		sem:     semaphore.NewWeighted(policy.MaxConcurrentFetches),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[Key]*entry),
		index:   make(map[Tag]map[Key]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers interest in q. The first subscriber for a key triggers
// the fetch; later subscribers share the in-flight or resolved entry. A stale
// entry is refetched here if nothing was fetched since it went stale.
func (s *Store) Subscribe(q Query) (*Subscription, error) {
	if err := q.Key.Validate(); err != nil {
		return nil, err
	}
	if q.Fetch == nil {
		return nil, ErrNilFetch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	e, ok := s.entries[q.Key]
	if !ok {
		e = newEntry(q.Key)
		s.entries[q.Key] = e
	}
	e.fetch, e.merge, e.public = q.Fetch, q.Merge, q.Public
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}

	s.nextSubID++
	sub := &Subscription{
		id:      s.nextSubID,
		store:   s,
		entry:   e,
		updates: make(chan struct{}, 1),
	}
	e.subs[sub.id] = sub

	if e.status == StatusIdle || e.needsRefetch() {
		s.startFetch(e, e.fetch, e.merge, true)
	}
	return sub, nil
}

// Refetch reissues the entry's own fetch.
func (s *Store) Refetch(key Key) (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return s.startFetch(e, e.fetch, e.merge, true), nil
}

// Fetch issues fn against an existing entry and commits its result through
// merge (nil replaces). It is how callers load data that is not the entry's
// default fetch, such as a later page of a collection.
func (s *Store) Fetch(key Key, fn FetchFunc, merge MergeFunc) (*Call, error) {
	if fn == nil {
		return nil, ErrNilFetch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return s.startFetch(e, fn, merge, false), nil
}

// Invalidate marks every entry matching tags as stale. Subscribed entries are
// refetched now, the rest on their next Subscribe. It returns the number of
// entries marked.
func (s *Store) Invalidate(tags ...Tag) int {
	return s.InvalidateExcept(nil, tags...)
}

// InvalidateExcept is Invalidate that leaves the skipped keys untouched.
func (s *Store) InvalidateExcept(skip []Key, tags ...Tag) int {
	if len(tags) == 0 {
		return 0
	}

	s.mu.Lock()
	n, refetched := 0, 0
	for _, e := range s.match(tags) {
		if slices.Contains(skip, e.key) {
			continue
		}
		n++
		if s.markStale(e) {
			refetched++
		}
	}
	s.mu.Unlock()

	if n > 0 {
		s.mw.Metrics().RecordEvent(s.ctx, "cache.invalidate",
			attribute.Int("entries", n),
			attribute.Int("refetched", refetched),
		)
		s.logger.Debug(s.ctx, "cache invalidated",
			observe.F("tags", TagStrings(tags)),
			observe.F("entries", n),
			observe.F("refetched", refetched),
		)
	}
	return n
}

// InvalidateKey marks the entry for key stale, refetching it now when it
// has subscribers. It reaches an entry whose first fetch has not committed
// tags yet: that fetch still settles, but the entry stays stale until the
// fetch issued here commits. It reports whether key is cached.
func (s *Store) InvalidateKey(key Key) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	refetched := ok && !s.closed && s.markStale(e)
	s.mu.Unlock()

	if ok {
		s.logger.Debug(s.ctx, "cache entry invalidated",
			observe.F("key", key.String()),
			observe.F("refetched", refetched),
		)
	}
	return ok
}

// markStale flags e stale as of its latest issued fetch and refetches it
// when subscribed. Called with s.mu held.
func (s *Store) markStale(e *entry) bool {
	e.stale = true
	e.staleAt = e.issued
	if len(e.subs) == 0 {
		return false
	}
	s.startFetch(e, e.fetch, e.merge, true)
	return true
}

// Patch applies fn to the data of the entry for key, whether or not it has
// subscribers. It reports whether the entry changed.
func (s *Store) Patch(key Key, fn PatchFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	return s.patch(e, fn)
}

// PatchTagged applies fn to every entry that tag reaches and returns the
// keys that changed, in key order.
func (s *Store) PatchTagged(tag Tag, fn PatchFunc) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var patched []Key
	for _, e := range s.match([]Tag{tag}) {
		if s.patch(e, fn) {
			patched = append(patched, e.key)
		}
	}
	return patched
}

func (s *Store) patch(e *entry, fn PatchFunc) bool {
	if e.data == nil {
		return false
	}
	next, changed := fn(e.data)
	if !changed {
		return false
	}
	e.data = next
	e.updatedAt = time.Now()
	e.notify()
	return true
}

// InFlight returns the latest unsettled fetch issued with the entry's own
// FetchFunc (by Subscribe, Refetch or Invalidate), or nil.
func (s *Store) InFlight(key Key) *Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.ownCall == nil {
		return nil
	}
	select {
	case <-e.ownCall.done:
		return nil
	default:
		return e.ownCall
	}
}

// Peek returns the entry for key without subscribing.
func (s *Store) Peek(key Key) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Keys returns the cached keys that tag reaches, in key order.
func (s *Store) Keys(tag Tag) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.match([]Tag{tag})
	keys := make([]Key, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ResetGated synchronously drops every identity-gated entry. It is run on
// session teardown so no data leaks into the next session.
func (s *Store) ResetGated() int {
	return s.reset("gated", func(e *entry) bool { return !e.public })
}

// Reset synchronously drops every entry.
func (s *Store) Reset() int {
	return s.reset("all", func(*entry) bool { return true })
}

// Close drops every entry, cancels in-flight fetches and rejects new
// subscriptions.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Reset()
	s.cancel()
}

func (s *Store) reset(scope string, drop func(*entry) bool) int {
	s.mu.Lock()
	n := 0
	for _, e := range s.entries {
		if !drop(e) {
			continue
		}
		s.remove(e)
		e.status = StatusIdle
		e.data, e.err, e.tags = nil, nil, nil
		e.stale = false
		e.notify()
		n++
	}
	s.mu.Unlock()

	if n > 0 {
		s.logger.Info(s.ctx, "cache reset", observe.F("scope", scope), observe.F("entries", n))
	}
	return n
}

func (s *Store) lookup(key Key) (*entry, error) {
	if s.closed {
		return nil, ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotCached
	}
	return e, nil
}

// startFetch issues a fetch for e. own marks the entry's default fetch.
// Called with s.mu held.
func (s *Store) startFetch(e *entry, fn FetchFunc, merge MergeFunc, own bool) *Call {
	e.issued++
	seq := e.issued
	e.inflight++
	if e.status != StatusSuccess {
		e.status = StatusPending
	}
	e.notify()

	call := newCall()
	if own {
		e.ownCall = call
	}
	op := observe.Operation{Kind: observe.KindQuery, Name: e.key.Operation}
	go func() {
		var res Result
		err := s.sem.Acquire(s.ctx, 1)
		if err == nil {
			err = s.mw.Run(s.ctx, op, func(ctx context.Context) error {
				var ferr error
				res, ferr = fn(ctx)
				return ferr
			})
			s.sem.Release(1)
		}
		s.complete(e, seq, fetchOutcome{result: res, err: err, merge: merge, call: call})
	}()
	return call
}

// complete records a fetch outcome and commits every outcome that is next
// in issuance order.
func (s *Store) complete(e *entry, seq uint64, out fetchOutcome) {
	s.mu.Lock()
	e.inflight--
	e.results[seq] = out

	var settled []*Call
	discarded := 0
	for {
		next, ok := e.results[e.committed+1]
		if !ok {
			break
		}
		delete(e.results, e.committed+1)
		e.committed++
		if e.removed {
			next.call.err = ErrDiscarded
			discarded++
		} else {
			s.apply(e, e.committed, next)
			next.call.err = next.err
		}
		settled = append(settled, next.call)
	}
	if !e.removed {
		e.notify()
	}
	s.mu.Unlock()

	for _, c := range settled {
		close(c.done)
	}
	if discarded > 0 {
		s.logger.Debug(s.ctx, "fetch result discarded", observe.F("key", e.key.String()), observe.F("results", discarded))
		s.mw.Metrics().RecordEvent(s.ctx, "cache.discard")
	}
}

// apply commits one outcome. Called with s.mu held.
func (s *Store) apply(e *entry, seq uint64, out fetchOutcome) {
	e.updatedAt = time.Now()
	if out.err != nil {
		e.status = StatusError
		e.err = out.err
		return
	}

	incoming := out.result
	if out.merge != nil {
		incoming = out.merge(Result{Data: e.data, Tags: e.tags}, incoming)
	}
	e.data = incoming.Data
	e.err = nil
	e.status = StatusSuccess
	s.setTags(e, incoming.Tags)
	if seq > e.staleAt {
		e.stale = false
	}
}

func (s *Store) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := sub.entry
	if _, ok := e.subs[sub.id]; !ok {
		return
	}
	delete(e.subs, sub.id)
	if len(e.subs) > 0 || e.removed {
		return
	}

	if s.policy.GraceWindow <= 0 {
		s.remove(e)
		return
	}
	e.evictTimer = time.AfterFunc(s.policy.GraceWindow, func() { s.evict(e) })
}

func (s *Store) evict(e *entry) {
	s.mu.Lock()
	if e.removed || len(e.subs) > 0 || s.entries[e.key] != e {
		s.mu.Unlock()
		return
	}
	s.remove(e)
	s.mu.Unlock()

	s.logger.Debug(s.ctx, "cache entry evicted", observe.F("key", e.key.String()))
	s.mw.Metrics().RecordEvent(s.ctx, "cache.evict")
}

// remove detaches e from the store. Called with s.mu held.
func (s *Store) remove(e *entry) {
	if s.entries[e.key] == e {
		delete(s.entries, e.key)
	}
	s.setTags(e, nil)
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}
	e.removed = true
}

// setTags replaces e's tags and keeps the index in sync. Called with s.mu held.
func (s *Store) setTags(e *entry, tags []Tag) {
	for _, t := range e.tags {
		if keys, ok := s.index[t]; ok {
			delete(keys, e.key)
			if len(keys) == 0 {
				delete(s.index, t)
			}
		}
	}
	e.tags = dedupeTags(tags)
	for _, t := range e.tags {
		keys, ok := s.index[t]
		if !ok {
			keys = make(map[Key]struct{})
			s.index[t] = keys
		}
		keys[e.key] = struct{}{}
	}
}

// match returns the entries that any of tags reaches, in key order.
// Called with s.mu held.
func (s *Store) match(tags []Tag) []*entry {
	hit := make(map[Key]struct{})
	for _, t := range tags {
		if t.IsWildcard() {
			for provided, keys := range s.index {
				if t.Matches(provided) {
					for k := range keys {
						hit[k] = struct{}{}
					}
				}
			}
			continue
		}
		for k := range s.index[t] {
			hit[k] = struct{}{}
		}
		for k := range s.index[Any(t.Type)] {
			hit[k] = struct{}{}
		}
	}

	out := make([]*entry, 0, len(hit))
	for k := range hit {
		if e, ok := s.entries[k]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key.String() < out[j].key.String()
	})
	return out
}
