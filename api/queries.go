package api

import (
	"context"
	"net/url"

	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/entity"
	"github.com/jonwraymond/tripsync/gateway"
	"github.com/jonwraymond/tripsync/pagination"
)

// Feed is the home feed, newest first.
func (a *API) Feed() (*pagination.Accumulator[entity.Post], error) {
	return paginated(a, entity.FeedKey(), "/feed", entity.PostID,
		itemTags(entity.TypePost, entity.PostID, entity.FeedTag))
}

// UserPosts lists the posts of one user.
func (a *API) UserPosts(userID string) (*pagination.Accumulator[entity.Post], error) {
	if userID == "" {
		return nil, ErrMissingID
	}
	return paginated(a, entity.UserPostsKey(userID), "/users/"+url.PathEscape(userID)+"/posts", entity.PostID,
		itemTags(entity.TypePost, entity.PostID, entity.UserTag(userID)))
}

// Comments lists the comments of a post, oldest first.
func (a *API) Comments(postID string) (*pagination.Accumulator[entity.Comment], error) {
	if postID == "" {
		return nil, ErrMissingID
	}
	return paginated(a, entity.CommentsKey(postID), "/posts/"+url.PathEscape(postID)+"/comments", entity.CommentID,
		itemTags(entity.TypeComment, entity.CommentID, entity.ThreadTag(postID)))
}

// Notifications lists the notifications of the signed-in user, newest
// first. The list answers to every Notification tag, so a notification it
// has not loaded yet still reaches it.
func (a *API) Notifications() (*pagination.Accumulator[entity.Notification], error) {
	return paginated(a, entity.NotificationsKey(), "/notifications", entity.NotificationID,
		pagination.ItemTags(entity.TypeNotification, entity.NotificationID))
}

// Invitations lists pending trip invitations.
func (a *API) Invitations() (*pagination.Accumulator[entity.Invitation], error) {
	return paginated(a, entity.InvitationsKey(), "/invitations", entity.InvitationID,
		itemTags(entity.TypeInvitation, entity.InvitationID, entity.InvitationListTag))
}

// Post loads one post.
func (a *API) Post(id string) (*Query[entity.Post], error) {
	if id == "" {
		return nil, ErrMissingID
	}
	return single(a, entity.PostKey(id), "/posts/"+url.PathEscape(id), func(p entity.Post) []cache.Tag {
		return []cache.Tag{entity.PostTag(id), entity.UserTag(p.AuthorID)}
	})
}

// Trips lists the trips the signed-in user belongs to.
func (a *API) Trips() (*Query[[]entity.Trip], error) {
	return single(a, entity.TripsKey(), "/trips", itemTags(entity.TypeTrip, entity.TripID, entity.TripListTag))
}

// Trip loads one trip.
func (a *API) Trip(id string) (*Query[entity.Trip], error) {
	if id == "" {
		return nil, ErrMissingID
	}
	return single(a, entity.TripKey(id), "/trips/"+url.PathEscape(id), func(entity.Trip) []cache.Tag {
		return []cache.Tag{entity.TripTag(id)}
	})
}

// UnreadNotificationCount is the notification badge.
func (a *API) UnreadNotificationCount() (*Query[entity.UnreadCount], error) {
	return single(a, entity.UnreadNotificationCountKey(), "/notifications/unread-count", constTags[entity.UnreadCount](entity.UnreadNotificationTag))
}

// Conversations lists the chats of the signed-in user.
func (a *API) Conversations() (*Query[[]entity.Conversation], error) {
	return single(a, entity.ConversationsKey(), "/conversations",
		itemTags(entity.TypeChat, entity.ConversationID, entity.ConversationListTag))
}

// UnreadMessageCount is the chat badge.
func (a *API) UnreadMessageCount() (*Query[entity.UnreadCount], error) {
	return single(a, entity.UnreadMessageCountKey(), "/conversations/unread-count", constTags[entity.UnreadCount](entity.UnreadMessagesTag))
}

// Transcript loads the message history of a conversation.
func (a *API) Transcript(conversationID string) (*Query[entity.Transcript], error) {
	if conversationID == "" {
		return nil, ErrMissingID
	}
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	return subscribe(a, entity.TranscriptKey(conversationID), func(ctx context.Context) (entity.Transcript, []cache.Tag, error) {
		t, err := gateway.Get[entity.Transcript](ctx, a.gw, path, nil)
		if t.ConversationID == "" {
			t.ConversationID = conversationID
		}
		return t, []cache.Tag{entity.ChatTag(conversationID)}, err
	})
}

func single[R any](a *API, key cache.Key, path string, tags func(R) []cache.Tag) (*Query[R], error) {
	return subscribe(a, key, func(ctx context.Context) (R, []cache.Tag, error) {
		v, err := gateway.Get[R](ctx, a.gw, path, nil)
		if err != nil {
			return v, nil, err
		}
		return v, tags(v), nil
	})
}

func subscribe[R any](a *API, key cache.Key, load func(ctx context.Context) (R, []cache.Tag, error)) (*Query[R], error) {
	sub, err := a.store.Subscribe(cache.Query{
		Key: key,
		Fetch: func(ctx context.Context) (cache.Result, error) {
			v, tags, err := load(ctx)
			if err != nil {
				return cache.Result{}, err
			}
			return cache.Result{Data: v, Tags: tags}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &Query[R]{sub: sub}, nil
}

func paginated[T any](a *API, key cache.Key, path string, id func(T) string, tags func([]T) []cache.Tag) (*pagination.Accumulator[T], error) {
	return pagination.New(a.store, pagination.Config[T]{
		Key: key,
		Fetch: func(ctx context.Context, cursor string) (pagination.Page[T], error) {
			var query url.Values
			if cursor != pagination.FirstPage {
				query = url.Values{"cursor": {cursor}}
			}
			return gateway.Get[pagination.Page[T]](ctx, a.gw, path, query)
		},
		ID:   id,
		Tags: tags,
	})
}

// itemTags declares one {typ, id} tag per item plus extra, without the
// wildcard pagination.ItemTags adds.
func itemTags[T any](typ string, id func(T) string, extra ...cache.Tag) func([]T) []cache.Tag {
	return func(items []T) []cache.Tag {
		tags := make([]cache.Tag, 0, len(items)+len(extra))
		for _, item := range items {
			tags = append(tags, cache.T(typ, id(item)))
		}
		return append(tags, extra...)
	}
}

func constTags[R any](tags ...cache.Tag) func(R) []cache.Tag {
	return func(R) []cache.Tag { return tags }
}
