package entity

import "github.com/jonwraymond/tripsync/cache"

// Operation names of the standard queries.
const (
	OpFeed                    = "feed"
	OpPostDetails             = "postDetails"
	OpUserPosts               = "userPosts"
	OpComments                = "comments"
	OpTrips                   = "trips"
	OpTripDetails             = "tripDetails"
	OpNotifications           = "notifications"
	OpUnreadNotificationCount = "unreadNotificationCount"
	OpConversations           = "conversations"
	OpUnreadMessageCount      = "unreadMessageCount"
	OpTranscript              = "transcript"
	OpInvitations             = "invitations"
)

// FeedKey is the key of the home feed.
func FeedKey() cache.Key { return cache.MustKey(OpFeed, nil) }

// TripsKey is the key of the viewer's trip list.
func TripsKey() cache.Key { return cache.MustKey(OpTrips, nil) }

// NotificationsKey is the key of the notification list.
func NotificationsKey() cache.Key { return cache.MustKey(OpNotifications, nil) }

// ConversationsKey is the key of the conversation list.
func ConversationsKey() cache.Key { return cache.MustKey(OpConversations, nil) }

// InvitationsKey is the key of the pending invitation list.
func InvitationsKey() cache.Key { return cache.MustKey(OpInvitations, nil) }

// UnreadNotificationCountKey is the key of the notification badge.
func UnreadNotificationCountKey() cache.Key {
	return cache.MustKey(OpUnreadNotificationCount, nil)
}

// UnreadMessageCountKey is the key of the chat badge.
func UnreadMessageCountKey() cache.Key {
	return cache.MustKey(OpUnreadMessageCount, nil)
}

// PostKey is the key of the detail view of post id.
func PostKey(id string) cache.Key {
	return cache.MustKey(OpPostDetails, map[string]string{"postId": id})
}

// UserPostsKey is the key of the posts authored by userID.
func UserPostsKey(userID string) cache.Key {
	return cache.MustKey(OpUserPosts, map[string]string{"userId": userID})
}

// CommentsKey is the key of the comment thread of postID.
func CommentsKey(postID string) cache.Key {
	return cache.MustKey(OpComments, map[string]string{"postId": postID})
}

// TripKey is the key of the detail view of trip id.
func TripKey(id string) cache.Key {
	return cache.MustKey(OpTripDetails, map[string]string{"tripId": id})
}

// TranscriptKey is the key of the message history of a conversation.
func TranscriptKey(conversationID string) cache.Key {
	return cache.MustKey(OpTranscript, map[string]string{"conversationId": conversationID})
}
