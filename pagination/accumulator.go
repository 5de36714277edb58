package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/tripsync/cache"
)

// Sentinel errors for pagination.
var (
	ErrNilFetch = errors.New("pagination: page fetch is nil")
	ErrNilID    = errors.New("pagination: item id function is nil")
)

// PageFunc fetches the page that starts at cursor.
type PageFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Config declares a paginated collection.
type Config[T any] struct {
	// Key identifies the collection. It must not include the cursor.
	Key cache.Key

	// Fetch loads one page.
	Fetch PageFunc[T]

	// ID returns the identity of an item, used to drop duplicates.
	ID func(T) string

	// Tags derives the entry's tags from the accumulated items.
	// Default: no tags.
	Tags func(items []T) []cache.Tag

	// Public marks the collection as surviving session teardown.
	Public bool
}

// Accumulator is one consumer's handle on a paginated collection.
//
// Contract:
//   - Concurrency: methods are safe for concurrent use.
//   - Ordering: pages commit in the order they were requested.
//   - Idempotence: an item id appears at most once in Items.
type Accumulator[T any] struct {
	store *cache.Store
	cfg   Config[T]
	sub   *cache.Subscription

	mu       sync.Mutex
	inflight map[string]*cache.Call
}

// New subscribes to the collection, loading the first page if the store
// does not hold it yet.
func New[T any](store *cache.Store, cfg Config[T]) (*Accumulator[T], error) {
	if cfg.Fetch == nil {
		return nil, ErrNilFetch
	}
	if cfg.ID == nil {
		return nil, ErrNilID
	}

	a := &Accumulator[T]{
		store:    store,
		cfg:      cfg,
		inflight: make(map[string]*cache.Call),
	}
	sub, err := store.Subscribe(cache.Query{
		Key:    cfg.Key,
		Fetch:  a.fetch(FirstPage),
		Merge:  a.merge,
		Public: cfg.Public,
	})
	if err != nil {
		return nil, fmt.Errorf("pagination: subscribe %s: %w", cfg.Key, err)
	}
	a.sub = sub
	return a, nil
}

// Collection returns the accumulated collection.
func (a *Accumulator[T]) Collection() Collection[T] {
	coll, _ := a.sub.Snapshot().Data.(Collection[T])
	return coll
}

// Snapshot returns the underlying entry state.
func (a *Accumulator[T]) Snapshot() cache.Snapshot {
	return a.sub.Snapshot()
}

// Updates is signalled after every change to the collection.
func (a *Accumulator[T]) Updates() <-chan struct{} {
	return a.sub.Updates()
}

// Wait blocks until the collection is settled.
func (a *Accumulator[T]) Wait(ctx context.Context) (Collection[T], error) {
	snap, err := a.sub.Wait(ctx)
	if err != nil {
		return Collection[T]{}, err
	}
	if snap.Err != nil {
		coll, _ := snap.Data.(Collection[T])
		return coll, snap.Err
	}
	coll, _ := snap.Data.(Collection[T])
	return coll, nil
}

// FetchPage requests the page at cursor and waits for it to be merged.
// It joins an in-flight request for the same cursor and does nothing if
// cursor is the one merged last.
func (a *Accumulator[T]) FetchPage(ctx context.Context, cursor string) error {
	call, err := a.issue(cursor)
	if err != nil || call == nil {
		return err
	}
	return call.Wait(ctx)
}

// FetchNext requests the page after the last merged one. It does nothing
// once the server reported no more pages.
func (a *Accumulator[T]) FetchNext(ctx context.Context) error {
	coll := a.Collection()
	if coll.Pages == 0 {
		return a.FetchPage(ctx, FirstPage)
	}
	if !coll.HasMore {
		return nil
	}
	return a.FetchPage(ctx, coll.Cursor)
}

// Refresh reloads the first page, replacing every accumulated item.
func (a *Accumulator[T]) Refresh(ctx context.Context) error {
	call, err := a.store.Refetch(a.cfg.Key)
	if err != nil {
		return err
	}
	return call.Wait(ctx)
}

// Close releases the subscription.
func (a *Accumulator[T]) Close() {
	a.sub.Unsubscribe()
}

func (a *Accumulator[T]) issue(cursor string) (*cache.Call, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if call, ok := a.inflight[cursor]; ok {
		return call, nil
	}
	if cursor == FirstPage {
		if call := a.store.InFlight(a.cfg.Key); call != nil {
			return call, nil
		}
	}
	if coll := a.Collection(); coll.Pages > 0 && coll.LastCursor == cursor {
		return nil, nil
	}

	call, err := a.store.Fetch(a.cfg.Key, a.fetch(cursor), a.merge)
	if err != nil {
		return nil, err
	}
	a.inflight[cursor] = call
	go func() {
		<-call.Done()
		a.mu.Lock()
		if a.inflight[cursor] == call {
			delete(a.inflight, cursor)
		}
		a.mu.Unlock()
	}()
	return call, nil
}

func (a *Accumulator[T]) fetch(cursor string) cache.FetchFunc {
	return func(ctx context.Context) (cache.Result, error) {
		page, err := a.cfg.Fetch(ctx, cursor)
		if err != nil {
			return cache.Result{}, err
		}
		return cache.Result{Data: fetched[T]{cursor: cursor, page: page}}, nil
	}
}

func (a *Accumulator[T]) merge(current, incoming cache.Result) cache.Result {
	f, ok := incoming.Data.(fetched[T])
	if !ok {
		return incoming
	}
	prev, _ := current.Data.(Collection[T])
	coll := merge(prev, f, a.cfg.ID)

	var tags []cache.Tag
	if a.cfg.Tags != nil {
		tags = a.cfg.Tags(coll.Items)
	}
	return cache.Result{Data: coll, Tags: tags}
}
