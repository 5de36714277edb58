package cache

import (
	"context"
	"sync"
)

// Subscription is one consumer's handle on an entry.
//
// Contract:
//   - Updates is signalled (coalesced, non-blocking) after every visible change.
//     It is meant for a single reader.
//   - Unsubscribe is idempotent.
//   - After ResetGated or Reset removes the entry, the subscription reports
//     StatusIdle with no data; subscribe again to fetch for the new session.
type Subscription struct {
	id      uint64
	store   *Store
	entry   *entry
	updates chan struct{}
	once    sync.Once
}

// Key returns the subscribed key.
func (s *Subscription) Key() Key { return s.entry.key }

// Updates returns the change signal channel.
func (s *Subscription) Updates() <-chan struct{} { return s.updates }

// Snapshot returns the entry's current state.
func (s *Subscription) Snapshot() Snapshot {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.entry.snapshot()
}

// Wait blocks until the entry is settled and returns its snapshot.
// It returns ErrDiscarded if the entry is reset while waiting.
func (s *Subscription) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.store.mu.Lock()
		snap := s.entry.snapshot()
		removed := s.entry.removed
		s.store.mu.Unlock()

		if removed {
			return snap, ErrDiscarded
		}
		if snap.Settled() {
			return snap, nil
		}

		select {
		case <-s.updates:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Unsubscribe releases the subscription. The entry is evicted once it has
// had no subscribers for the store's grace window.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.store.unsubscribe(s)
	})
}
