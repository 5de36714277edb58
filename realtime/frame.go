package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Inbound event types.
const (
	EventPresenceSnapshot    = "presence.snapshot"
	EventTyping              = "typing"
	EventTypingStop          = "typing.stop"
	EventMessageDelivered    = "message.delivered"
	EventNotificationCreated = "notification.created"
)

// Outbound event types. EventTyping and EventTypingStop are sent as well.
const (
	EventConversationJoin = "conversation.join"
	EventMessageNew       = "message.new"
	EventPresenceRequest  = "presence.request"
)

// Frame is the envelope of every websocket message.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type PresencePayload struct {
	UserIDs []string `json:"userIds"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId,omitempty"`
}

type JoinPayload struct {
	ConversationID string `json:"conversationId"`
}

// encodeFrame renders an outbound frame with a fresh request id.
func encodeFrame(typ string, payload any) ([]byte, error) {
	f := Frame{Type: typ, RequestID: ulid.Make().String()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("realtime: encode %s: %w", typ, err)
		}
		f.Payload = raw
	}
	return json.Marshal(f)
}

func decodePayload(f Frame, v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("realtime: %s without payload", f.Type)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("realtime: decode %s: %w", f.Type, err)
	}
	return nil
}
