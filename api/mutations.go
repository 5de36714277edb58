package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/entity"
	"github.com/jonwraymond/tripsync/gateway"
	"github.com/jonwraymond/tripsync/mutation"
	"github.com/jonwraymond/tripsync/observe"
	"github.com/jonwraymond/tripsync/pagination"
	"github.com/jonwraymond/tripsync/realtime"
)

// NewPost is the body of CreatePost.
type NewPost struct {
	Caption   string   `json:"caption"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
	TripID    string   `json:"tripId,omitempty"`
}

// NewTrip is the body of CreateTrip.
type NewTrip struct {
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	MemberIDs   []string  `json:"memberIds,omitempty"`
}

type commentBody struct {
	Body string `json:"body"`
}

type messageBody struct {
	ClientMessageID string `json:"clientMessageId"`
	Body            string `json:"body"`
}

func postPath(id string, rest ...string) string {
	return "/" + strings.Join(append([]string{"posts", url.PathEscape(id)}, rest...), "/")
}

// SetLiked likes or unlikes a post. Every cached copy of the post flips at
// once and flips back if the request fails.
func (a *API) SetLiked(ctx context.Context, postID string, liked bool) (entity.Post, error) {
	method := http.MethodPost
	if !liked {
		method = http.MethodDelete
	}
	return a.togglePost(ctx, "like", postID, method, postPath(postID, "like"),
		entity.SetLiked(liked), entity.SetLiked(!liked), entity.ConfirmLike)
}

// SetBookmarked bookmarks or unbookmarks a post, optimistically.
func (a *API) SetBookmarked(ctx context.Context, postID string, bookmarked bool) (entity.Post, error) {
	method := http.MethodPost
	if !bookmarked {
		method = http.MethodDelete
	}
	return a.togglePost(ctx, "bookmark", postID, method, postPath(postID, "bookmark"),
		entity.SetBookmarked(bookmarked), entity.SetBookmarked(!bookmarked), entity.ConfirmBookmark)
}

type postChange = func(entity.Post) (entity.Post, bool)

// togglePost flips one field of a post. confirm writes only that field of
// the server's reply, so a concurrent toggle of another field survives.
func (a *API) togglePost(ctx context.Context, name, postID, method, path string, apply, revert postChange, confirm func(entity.Post) postChange) (entity.Post, error) {
	if postID == "" {
		return entity.Post{}, ErrMissingID
	}
	tag := entity.PostTag(postID)
	return mutation.Run(ctx, a.mutations, mutation.Mutation[entity.Post]{
		Name:     name,
		Resource: entity.TypePost,
		Do: func(ctx context.Context) (entity.Post, error) {
			return gateway.Send[entity.Post](ctx, a.gw, gateway.Request{Method: method, Path: path})
		},
		Invalidates: []cache.Tag{tag},
		Optimistic: []mutation.Patch{{
			Tag:    tag,
			Apply:  entity.UpdatePost(postID, apply),
			Revert: entity.UpdatePost(postID, revert),
		}},
		Confirm: func(p entity.Post) cache.PatchFunc {
			if p.ID != postID {
				return nil
			}
			return entity.UpdatePost(postID, confirm(p))
		},
	})
}

// CreatePost publishes a post and refreshes the lists it appears in.
func (a *API) CreatePost(ctx context.Context, in NewPost) (entity.Post, error) {
	return mutation.Run(ctx, a.mutations, mutation.Mutation[entity.Post]{
		Name:     "createPost",
		Resource: entity.TypePost,
		Do: func(ctx context.Context) (entity.Post, error) {
			return gateway.Post[entity.Post](ctx, a.gw, "/posts", in)
		},
		Invalidates: []cache.Tag{entity.FeedTag},
		InvalidatesFrom: func(p entity.Post) []cache.Tag {
			tags := []cache.Tag{entity.UserTag(p.AuthorID)}
			if p.TripID != "" {
				tags = append(tags, entity.TripTag(p.TripID))
			}
			return tags
		},
	})
}

// DeletePost deletes a post and drops it from every cached list.
func (a *API) DeletePost(ctx context.Context, postID string) error {
	if postID == "" {
		return ErrMissingID
	}
	_, err := mutation.Run(ctx, a.mutations, mutation.Mutation[struct{}]{
		Name:     "deletePost",
		Resource: entity.TypePost,
		Do: func(ctx context.Context) (struct{}, error) {
			_, err := a.gw.Do(ctx, gateway.Request{Method: http.MethodDelete, Path: postPath(postID)})
			return struct{}{}, err
		},
		Update: func(struct{}) []mutation.Patch {
			return []mutation.Patch{{
				Tag:   entity.PostTag(postID),
				Apply: pagination.RemoveItem(postID, entity.PostID),
			}}
		},
	})
	return err
}

// AddComment comments on a post and bumps its comment count.
func (a *API) AddComment(ctx context.Context, postID, body string) (entity.Comment, error) {
	if postID == "" {
		return entity.Comment{}, ErrMissingID
	}
	if strings.TrimSpace(body) == "" {
		return entity.Comment{}, ErrEmptyBody
	}
	return mutation.Run(ctx, a.mutations, mutation.Mutation[entity.Comment]{
		Name:     "addComment",
		Resource: entity.TypeComment,
		Do: func(ctx context.Context) (entity.Comment, error) {
			return gateway.Post[entity.Comment](ctx, a.gw, postPath(postID, "comments"), commentBody{Body: body})
		},
		Invalidates: []cache.Tag{entity.ThreadTag(postID)},
		Update: func(entity.Comment) []mutation.Patch {
			return []mutation.Patch{{
				Tag:   entity.PostTag(postID),
				Apply: entity.UpdatePost(postID, entity.AdjustCommentCount(1)),
			}}
		},
	})
}

// CreateTrip creates a trip owned by the signed-in user.
func (a *API) CreateTrip(ctx context.Context, in NewTrip) (entity.Trip, error) {
	return mutation.Run(ctx, a.mutations, mutation.Mutation[entity.Trip]{
		Name:        "createTrip",
		Resource:    entity.TypeTrip,
		Do:          func(ctx context.Context) (entity.Trip, error) { return gateway.Post[entity.Trip](ctx, a.gw, "/trips", in) },
		Invalidates: []cache.Tag{entity.TripListTag},
	})
}

// MarkNotificationsRead marks every notification read and clears the badge.
func (a *API) MarkNotificationsRead(ctx context.Context) error {
	_, err := mutation.Run(ctx, a.mutations, mutation.Mutation[struct{}]{
		Name:     "markNotificationsRead",
		Resource: entity.TypeNotification,
		Do: func(ctx context.Context) (struct{}, error) {
			_, err := a.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/notifications/read"})
			return struct{}{}, err
		},
		Update: func(struct{}) []mutation.Patch {
			return []mutation.Patch{
				{Keys: []cache.Key{entity.NotificationsKey()}, Apply: entity.MarkNotificationsRead()},
				{Keys: []cache.Key{entity.UnreadNotificationCountKey()}, Apply: entity.ClearUnread()},
			}
		},
	})
	return err
}

// SendMessage posts a chat message. It shows in the transcript at once under
// a fresh client message id, is replaced by the server's copy on success and
// removed on failure. The realtime connection is told about it afterwards.
func (a *API) SendMessage(ctx context.Context, conversationID, body string) (entity.Message, error) {
	if conversationID == "" {
		return entity.Message{}, ErrMissingID
	}
	if strings.TrimSpace(body) == "" {
		return entity.Message{}, ErrEmptyBody
	}
	self, err := a.selfID()
	if err != nil {
		return entity.Message{}, err
	}

	local := entity.Message{
		ClientMessageID: ulid.Make().String(),
		ConversationID:  conversationID,
		SenderID:        self,
		Body:            body,
		SentAt:          time.Now().UTC(),
	}
	transcript := []cache.Key{entity.TranscriptKey(conversationID)}
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"

	sent, err := mutation.Run(ctx, a.mutations, mutation.Mutation[entity.Message]{
		Name:     "sendMessage",
		Resource: entity.TypeChat,
		Do: func(ctx context.Context) (entity.Message, error) {
			m, err := gateway.Post[entity.Message](ctx, a.gw, path, messageBody{ClientMessageID: local.ClientMessageID, Body: body})
			if err != nil {
				return m, err
			}
			if m.ClientMessageID == "" {
				m.ClientMessageID = local.ClientMessageID
			}
			if m.ConversationID == "" {
				m.ConversationID = conversationID
			}
			return m, nil
		},
		Invalidates: []cache.Tag{entity.ConversationListTag},
		Optimistic: []mutation.Patch{{
			Keys:   transcript,
			Apply:  entity.AppendMessage(local),
			Revert: entity.RemoveMessage(local.ClientMessageID),
		}},
		Update: func(m entity.Message) []mutation.Patch {
			return []mutation.Patch{{Keys: transcript, Apply: entity.AppendMessage(m)}}
		},
	})
	if err != nil {
		return entity.Message{}, err
	}
	a.announce(ctx, sent)
	return sent, nil
}

func (a *API) announce(ctx context.Context, m entity.Message) {
	if a.announcer == nil {
		return
	}
	_ = a.announcer.StopTyping(m.ConversationID)
	if err := a.announcer.AnnounceMessage(m); err != nil {
		if errors.Is(err, realtime.ErrNotConnected) {
			a.logger.Debug(ctx, "message hint skipped, realtime offline", observe.F("conversation_id", m.ConversationID))
			return
		}
		a.logger.Warn(ctx, "message hint failed", observe.F("conversation_id", m.ConversationID), observe.F("error", err))
	}
}

// AcceptInvitation joins the invited trip. The invitation shows as accepted
// for the settle window before it leaves the list.
func (a *API) AcceptInvitation(ctx context.Context, id string) (entity.Invitation, error) {
	if id == "" {
		return entity.Invitation{}, ErrMissingID
	}
	invitations := []cache.Key{entity.InvitationsKey()}
	return mutation.Run(ctx, a.mutations, mutation.Mutation[entity.Invitation]{
		Name:        "acceptInvitation",
		Resource:    entity.TypeInvitation,
		Do:          a.answerInvitation(id, "accept"),
		Invalidates: []cache.Tag{entity.TripListTag},
		InvalidatesFrom: func(inv entity.Invitation) []cache.Tag {
			if inv.TripID == "" {
				return nil
			}
			return []cache.Tag{entity.TripTag(inv.TripID)}
		},
		Update: func(entity.Invitation) []mutation.Patch {
			return []mutation.Patch{{Keys: invitations, Apply: entity.SetInvitationStatus(id, entity.InvitationAccepted)}}
		},
		After: func(entity.Invitation) []mutation.Patch {
			return []mutation.Patch{{Keys: invitations, Apply: entity.RemoveInvitation(id)}}
		},
		Settle: a.settle,
	})
}

// DeclineInvitation declines and drops an invitation.
func (a *API) DeclineInvitation(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	_, err := mutation.Run(ctx, a.mutations, mutation.Mutation[entity.Invitation]{
		Name:     "declineInvitation",
		Resource: entity.TypeInvitation,
		Do:       a.answerInvitation(id, "decline"),
		Update: func(entity.Invitation) []mutation.Patch {
			return []mutation.Patch{{Keys: []cache.Key{entity.InvitationsKey()}, Apply: entity.RemoveInvitation(id)}}
		},
	})
	return err
}

func (a *API) answerInvitation(id, verb string) func(context.Context) (entity.Invitation, error) {
	path := "/invitations/" + url.PathEscape(id) + "/" + verb
	return func(ctx context.Context) (entity.Invitation, error) {
		return gateway.Post[entity.Invitation](ctx, a.gw, path, nil)
	}
}
