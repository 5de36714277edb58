package entity

import "time"

// User is a member profile as embedded in other payloads.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Post is a feed entry with the viewer's like and bookmark state.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	Caption      string    `json:"caption"`
	MediaURLs    []string  `json:"mediaUrls,omitempty"`
	TripID       string    `json:"tripId,omitempty"`
	Liked        bool      `json:"liked"`
	LikeCount    int       `json:"likeCount"`
	Bookmarked   bool      `json:"bookmarked"`
	CommentCount int       `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Trip is a planned journey shared by its members.
type Trip struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	MemberIDs   []string  `json:"memberIds,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Comment is one reply in the thread of a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is an activity item addressed to the viewer.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ActorID   string    `json:"actorId"`
	SubjectID string    `json:"subjectId,omitempty"`
	Text      string    `json:"text"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnreadCount is the payload of a counter badge entry.
type UnreadCount struct {
	Count int `json:"count"`
}

// Message is a chat message. A local copy not yet confirmed by the server
// has no ID and is identified by ClientMessageID.
type Message struct {
	ID              string    `json:"id"`
	ClientMessageID string    `json:"clientMessageId,omitempty"`
	ConversationID  string    `json:"conversationId"`
	SenderID        string    `json:"senderId"`
	Body            string    `json:"body"`
	SentAt          time.Time `json:"sentAt"`
}

// SameAs reports whether m and other are the same message: equal server ids,
// or equal client ids when both carry one.
func (m Message) SameAs(other Message) bool {
	if m.ID != "" && m.ID == other.ID {
		return true
	}
	return m.ClientMessageID != "" && m.ClientMessageID == other.ClientMessageID
}

// Conversation is a chat thread as shown in the conversation list.
type Conversation struct {
	ID             string    `json:"id"`
	ParticipantIDs []string  `json:"participantIds"`
	LastMessage    *Message  `json:"lastMessage,omitempty"`
	UnreadCount    int       `json:"unreadCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Transcript is the ordered message history of one conversation.
type Transcript struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
}

// InvitationStatus is the answer state of an Invitation.
type InvitationStatus string

// Invitation states.
const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// Invitation asks the viewer to join a trip.
type Invitation struct {
	ID        string           `json:"id"`
	TripID    string           `json:"tripId"`
	InviterID string           `json:"inviterId"`
	Status    InvitationStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// PostID is the identity of a Post in paged collections.
func PostID(p Post) string { return p.ID }

// TripID is the identity of a Trip in paged collections.
func TripID(t Trip) string { return t.ID }

// CommentID is the identity of a Comment in paged collections.
func CommentID(c Comment) string { return c.ID }

// NotificationID is the identity of a Notification in paged collections.
func NotificationID(n Notification) string { return n.ID }

// ConversationID is the identity of a Conversation in paged collections.
func ConversationID(c Conversation) string { return c.ID }

// InvitationID is the identity of an Invitation in paged collections.
func InvitationID(i Invitation) string { return i.ID }
