package entity

import "github.com/jonwraymond/tripsync/cache"

// Tag types.
const (
	TypePost         = "Post"
	TypeTrip         = "Trip"
	TypeComment      = "Comment"
	TypeFeed         = "Feed"
	TypeChat         = "Chat"
	TypeNotification = "Notification"
	TypeInvitation   = "Invitation"
	TypeUser         = "User"
)

// PostTag labels entries holding post id.
func PostTag(id string) cache.Tag { return cache.T(TypePost, id) }

// TripTag labels entries holding trip id.
func TripTag(id string) cache.Tag { return cache.T(TypeTrip, id) }

// CommentTag labels entries holding comment id.
func CommentTag(id string) cache.Tag { return cache.T(TypeComment, id) }

// ChatTag labels entries derived from conversation id.
func ChatTag(id string) cache.Tag { return cache.T(TypeChat, id) }

// NotificationTag labels entries holding notification id.
func NotificationTag(id string) cache.Tag { return cache.T(TypeNotification, id) }

// InvitationTag labels entries holding invitation id.
func InvitationTag(id string) cache.Tag { return cache.T(TypeInvitation, id) }

// UserTag labels entries holding the profile or posts of user id.
func UserTag(id string) cache.Tag { return cache.T(TypeUser, id) }

// ThreadTag labels the comment list of a post.
func ThreadTag(postID string) cache.Tag { return cache.T(TypeComment, "post:"+postID) }

// Singleton tags label entries that have no entity id of their own.
var (
	FeedTag               = cache.T(TypeFeed, "home")
	ConversationListTag   = cache.T(TypeChat, "list")
	UnreadMessagesTag     = cache.T(TypeChat, "unread")
	UnreadNotificationTag = cache.T(TypeNotification, "unread")
	TripListTag           = cache.T(TypeTrip, "list")
	InvitationListTag     = cache.T(TypeInvitation, "list")
)
