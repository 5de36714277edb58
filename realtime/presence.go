package realtime

import "sort"

// State returns the connection state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// UserID returns the user the Reconciler is connected as, or "".
func (r *Reconciler) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

// Presence returns the online peer ids, sorted.
func (r *Reconciler) Presence() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.presence))
	for id := range r.presence {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsOnline reports whether userID is in the presence set.
func (r *Reconciler) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.presence[userID]
	return ok
}

// IsTyping reports whether any peer is typing in the conversation.
func (r *Reconciler) IsTyping(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.typing[conversationID]) > 0
}

// TypingUsers returns the peers typing in the conversation, sorted.
func (r *Reconciler) TypingUsers(conversationID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.typing[conversationID]))
	for id := range r.typing[conversationID] {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// Changes is signalled (coalesced) whenever connection state, presence or
// typing state changes.
func (r *Reconciler) Changes() <-chan struct{} {
	return r.changes
}

func (r *Reconciler) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// setPresence replaces the presence set.
func (r *Reconciler) setPresence(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			next[id] = struct{}{}
		}
	}
	r.mu.Lock()
	r.presence = next
	r.mu.Unlock()
	r.notify()
}

func (r *Reconciler) setTyping(conversationID, userID string, typing bool) {
	r.mu.Lock()
	users := r.typing[conversationID]
	_, was := users[userID]
	switch {
	case typing && !was:
		if users == nil {
			users = make(map[string]struct{})
			r.typing[conversationID] = users
		}
		users[userID] = struct{}{}
	case !typing && was:
		delete(users, userID)
		if len(users) == 0 {
			delete(r.typing, conversationID)
		}
	default:
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.notify()
}

// clearPeers drops presence and typing state. Called with r.mu held.
func (r *Reconciler) clearPeers() {
	r.presence = make(map[string]struct{})
	r.typing = make(map[string]map[string]struct{})
}

