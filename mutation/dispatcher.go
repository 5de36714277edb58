package mutation

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/observe"
)

// Dispatcher executes mutations against one cache.Store.
//
// Contract:
//   - Concurrency: safe for concurrent use; mutations run in the caller's
//     goroutine and may overlap.
//   - Errors: a failed Do is returned as *Error wrapping the cause.
//   - Rollback: only entries an optimistic Apply changed are reverted, in
//     reverse patch order.
type Dispatcher struct {
	store  *cache.Store
	logger observe.Logger
	mw     *observe.Middleware

	mu      sync.Mutex
	pending map[string]int
	timers  map[*time.Timer]struct{}
	closed  bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for rollbacks.
func WithLogger(l observe.Logger) Option {
	return func(d *Dispatcher) { d.logger = observe.OrNop(l) }
}

// WithMiddleware wraps every Do with tracing and metrics.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(d *Dispatcher) {
		if mw != nil {
			d.mw = mw
		}
	}
}

// NewDispatcher creates a Dispatcher writing into store.
func NewDispatcher(store *cache.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		logger:  observe.NopLogger(),
		mw:      observe.NopMiddleware(),
		pending: make(map[string]int),
		timers:  make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// applied records the entries one optimistic patch changed.
type applied struct {
	patch  Patch
	target string
	keys   []cache.Key
}

// Run executes m.
func Run[R any](ctx context.Context, d *Dispatcher, m Mutation[R]) (R, error) {
	var zero R
	if err := m.validate(); err != nil {
		return zero, err
	}
	if d.isClosed() {
		return zero, ErrClosed
	}

	patches := d.begin(m.Name, m.Optimistic)

	var result R
	op := observe.Operation{
		Kind:     observe.KindMutation,
		Name:     m.Name,
		Resource: m.Resource,
		Tags:     cache.TagStrings(m.Invalidates),
	}
	err := d.mw.Run(ctx, op, func(ctx context.Context) error {
		var err error
		result, err = m.Do(ctx)
		return err
	})

	alone := d.end(patches)
	if err != nil {
		rolledBack := d.rollback(ctx, m.Name, patches)
		return zero, &Error{Mutation: m.Name, Err: err, RolledBack: rolledBack}
	}

	commit(d, m, result, patches, alone)
	return result, nil
}

// Pending returns the number of optimistic mutations named name in flight
// on tag.
func (d *Dispatcher) Pending(name string, tag cache.Tag) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending[pendingKey(name, Patch{Tag: tag})]
}

// pendingKey scopes the pending count of a target to one mutation name.
func pendingKey(name string, p Patch) string {
	return name + " " + p.target()
}

// Close cancels scheduled After patches and rejects new mutations.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for t := range d.timers {
		t.Stop()
	}
	clear(d.timers)
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// begin applies the optimistic patches and marks their targets pending.
func (d *Dispatcher) begin(name string, patches []Patch) []applied {
	if len(patches) == 0 {
		return nil
	}
	out := make([]applied, len(patches))
	for i, p := range patches {
		out[i] = applied{patch: p, target: pendingKey(name, p), keys: d.apply(p.Tag, p.Keys, p.Apply)}
	}

	d.mu.Lock()
	for _, a := range out {
		d.pending[a.target]++
	}
	d.mu.Unlock()
	return out
}

// end clears the pending marks of patches and reports, per patch, whether
// no other mutation is still pending on its target.
func (d *Dispatcher) end(patches []applied) []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	alone := make([]bool, len(patches))
	for i, a := range patches {
		d.pending[a.target]--
		if d.pending[a.target] <= 0 {
			delete(d.pending, a.target)
			alone[i] = true
		}
	}
	return alone
}

func (d *Dispatcher) rollback(ctx context.Context, name string, patches []applied) bool {
	reverted := 0
	for i := len(patches) - 1; i >= 0; i-- {
		a := patches[i]
		for _, k := range a.keys {
			if d.store.Patch(k, a.patch.Revert) {
				reverted++
			}
		}
	}

	patched := 0
	for _, a := range patches {
		patched += len(a.keys)
	}
	if patched == 0 {
		return false
	}

	d.mw.Metrics().RecordEvent(ctx, "mutation.rollback",
		attribute.String("mutation", name),
		attribute.Int("entries", patched),
	)
	d.logger.Warn(ctx, "optimistic update rolled back",
		observe.F("mutation", name),
		observe.F("entries", patched),
		observe.F("reverted", reverted),
	)
	return true
}

// commit invalidates the tags of a successful mutation, sparing the entries
// it patched, then reconciles and schedules follow-up patches.
func commit[R any](d *Dispatcher, m Mutation[R], result R, patches []applied, alone []bool) {
	var patched []cache.Key
	for _, a := range patches {
		patched = append(patched, a.keys...)
	}
	d.store.InvalidateExcept(patched, m.tags(result)...)

	if m.Confirm != nil {
		if fn := m.Confirm(result); fn != nil {
			for i, a := range patches {
				if !alone[i] {
					continue
				}
				for _, k := range a.keys {
					d.store.Patch(k, fn)
				}
			}
		}
	}

	if m.Update != nil {
		for _, p := range m.Update(result) {
			d.apply(p.Tag, p.Keys, p.Apply)
		}
	}

	if m.After != nil {
		after := m.After(result)
		d.schedule(m.Settle, func() {
			for _, p := range after {
				d.apply(p.Tag, p.Keys, p.Apply)
			}
		})
	}
}

// apply patches every entry tag reaches plus keys, each at most once, and
// returns the keys that changed.
func (d *Dispatcher) apply(tag cache.Tag, keys []cache.Key, fn cache.PatchFunc) []cache.Key {
	if fn == nil {
		return nil
	}
	var changed, seen []cache.Key
	if tag.Type != "" {
		seen = d.store.Keys(tag)
		changed = d.store.PatchTagged(tag, fn)
	}
	for _, k := range keys {
		if slices.Contains(seen, k) {
			continue
		}
		seen = append(seen, k)
		if d.store.Patch(k, fn) {
			changed = append(changed, k)
		}
	}
	return changed
}

func (d *Dispatcher) schedule(delay time.Duration, fn func()) {
	if delay <= 0 {
		fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, t)
		closed := d.closed
		d.mu.Unlock()
		if !closed {
			fn()
		}
	})
	d.timers[t] = struct{}{}
}
