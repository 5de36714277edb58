package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/entity"
	"github.com/jonwraymond/tripsync/observe"
)

var errIncompleteEvent = errors.New("realtime: event is missing required fields")

// handle routes one inbound frame.
func (r *Reconciler) handle(ctx context.Context, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil || f.Type == "" {
		r.drop(ctx, "malformed", err)
		return
	}

	var err error
	switch f.Type {
	case EventPresenceSnapshot:
		var p PresencePayload
		if err = decodePayload(f, &p); err == nil {
			r.setPresence(p.UserIDs)
		}
	case EventTyping, EventTypingStop:
		var p TypingPayload
		if err = decodePayload(f, &p); err == nil {
			if p.ConversationID == "" || p.UserID == "" {
				err = errIncompleteEvent
				break
			}
			r.setTyping(p.ConversationID, p.UserID, f.Type == EventTyping)
		}
	case EventMessageDelivered:
		var m entity.Message
		if err = decodePayload(f, &m); err == nil {
			if m.ID == "" || m.ConversationID == "" {
				err = errIncompleteEvent
				break
			}
			r.deliverMessage(ctx, m)
		}
	case EventNotificationCreated:
		var n entity.Notification
		if err = decodePayload(f, &n); err == nil {
			if n.ID == "" {
				err = errIncompleteEvent
				break
			}
			r.deliverNotification(ctx, n)
		}
	default:
		r.logger.Debug(ctx, "ignored realtime event", observe.F("type", f.Type))
		return
	}

	if err != nil {
		r.drop(ctx, f.Type, err)
		return
	}
	r.mw.Metrics().RecordEvent(ctx, "realtime.event", attribute.String("type", f.Type))
}

func (r *Reconciler) drop(ctx context.Context, typ string, err error) {
	r.mw.Metrics().RecordEvent(ctx, "realtime.dropped", attribute.String("type", typ))
	r.logger.Warn(ctx, "dropped realtime frame", observe.F("type", typ), observe.F("error", err))
}

// deliverMessage appends m to the open transcript, or flags its
// conversation as updated when it is not open.
func (r *Reconciler) deliverMessage(ctx context.Context, m entity.Message) {
	r.setTyping(m.ConversationID, m.SenderID, false)

	r.mu.Lock()
	open, self := r.open, r.userID
	r.mu.Unlock()

	if m.ConversationID == open {
		transcript := entity.TranscriptKey(m.ConversationID)
		if !r.store.Patch(transcript, entity.AppendMessage(m)) {
			r.refetchUnloaded(transcript)
		}
		r.store.InvalidateExcept([]cache.Key{transcript}, entity.ChatTag(m.ConversationID))
		return
	}

	r.store.Invalidate(entity.ConversationListTag)
	r.refetchUnloaded(entity.ConversationsKey())
	if m.SenderID != self {
		r.bump(entity.UnreadMessageCountKey())
	}
	r.logger.Debug(ctx, "message for closed conversation", observe.F("conversation_id", m.ConversationID))
}

// deliverNotification prepends n to the notification list and counts it
// as unread.
func (r *Reconciler) deliverNotification(_ context.Context, n entity.Notification) {
	list := entity.NotificationsKey()
	if !r.store.Patch(list, entity.PrependNotification(n)) {
		r.refetchUnloaded(list)
	}
	if !n.Read {
		r.bump(entity.UnreadNotificationCountKey())
	}
}

// bump increments the counter entry at key.
func (r *Reconciler) bump(key cache.Key) {
	if !r.store.Patch(key, entity.AdjustUnread(1)) {
		r.refetchUnloaded(key)
	}
}

// refetchUnloaded invalidates the entry at key when it is cached without
// data, which is the case while its first fetch runs. That fetch predates
// the event and carries no tags yet, so only a key invalidation reaches it.
func (r *Reconciler) refetchUnloaded(key cache.Key) {
	if snap, ok := r.store.Peek(key); ok && snap.Data == nil {
		r.store.InvalidateKey(key)
	}
}
