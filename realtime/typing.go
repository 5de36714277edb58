package realtime

import (
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/tripsync/entity"
)

// ErrMissingConversationID is returned by conversation scoped calls without an id.
var ErrMissingConversationID = errors.New("realtime: conversation id is required")

// typer tracks the local typing signal of one conversation.
type typer struct {
	limiter *rate.Limiter
	timer   *time.Timer
	seq     uint64
}

// Typing records a local keystroke in the conversation. A typing event is
// sent at most once per TypingMinInterval, and typing.stop follows once no
// keystroke arrived for TypingIdle.
func (r *Reconciler) Typing(conversationID string) error {
	if conversationID == "" {
		return ErrMissingConversationID
	}

	r.mu.Lock()
	t, ok := r.typers[conversationID]
	if !ok {
		t = &typer{limiter: rate.NewLimiter(rate.Every(r.cfg.TypingMinInterval), 1)}
		r.typers[conversationID] = t
	}
	t.seq++
	seq := t.seq
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(r.cfg.TypingIdle, func() { r.typingIdle(conversationID, seq) })
	allow := t.limiter.Allow()
	r.mu.Unlock()

	if !allow {
		return nil
	}
	return r.send(EventTyping, TypingPayload{ConversationID: conversationID})
}

// StopTyping ends the local typing signal now, as when a message is sent.
func (r *Reconciler) StopTyping(conversationID string) error {
	r.mu.Lock()
	t, ok := r.typers[conversationID]
	if ok {
		t.timer.Stop()
		delete(r.typers, conversationID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.send(EventTypingStop, TypingPayload{ConversationID: conversationID})
}

func (r *Reconciler) typingIdle(conversationID string, seq uint64) {
	r.mu.Lock()
	t, ok := r.typers[conversationID]
	if !ok || t.seq != seq {
		r.mu.Unlock()
		return
	}
	delete(r.typers, conversationID)
	r.mu.Unlock()
	_ = r.send(EventTypingStop, TypingPayload{ConversationID: conversationID})
}

// stopTypers cancels every idle timer. Called with r.mu held.
func (r *Reconciler) stopTypers() {
	for id, t := range r.typers {
		t.timer.Stop()
		delete(r.typers, id)
	}
}

// OpenConversation marks the conversation as the one on screen: its live
// messages are appended to its transcript. It is joined now if connected
// and on every reconnect.
func (r *Reconciler) OpenConversation(conversationID string) error {
	if conversationID == "" {
		return ErrMissingConversationID
	}
	r.mu.Lock()
	prev := r.open
	r.open = conversationID
	r.mu.Unlock()

	if prev != "" && prev != conversationID {
		_ = r.StopTyping(prev)
	}
	err := r.send(EventConversationJoin, JoinPayload{ConversationID: conversationID})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// CloseConversation clears the open conversation if it is conversationID.
func (r *Reconciler) CloseConversation(conversationID string) {
	r.mu.Lock()
	if r.open == conversationID {
		r.open = ""
	}
	r.mu.Unlock()
	_ = r.StopTyping(conversationID)
}

// OpenConversationID returns the open conversation, or "".
func (r *Reconciler) OpenConversationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// AnnounceMessage broadcasts the message.new hint for a message the server
// accepted.
func (r *Reconciler) AnnounceMessage(m entity.Message) error {
	return r.send(EventMessageNew, m)
}
