package entity

import (
	"slices"

	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/pagination"
)

// UpdatePost returns a PatchFunc applying fn to post id, whether the entry
// holds that Post or a Collection[Post] containing it.
func UpdatePost(id string, fn func(Post) (Post, bool)) cache.PatchFunc {
	inList := pagination.UpdateItems(func(p Post) (Post, bool) {
		if p.ID != id {
			return p, false
		}
		return fn(p)
	})
	return func(data any) (any, bool) {
		switch d := data.(type) {
		case Post:
			if d.ID != id {
				return data, false
			}
			next, ok := fn(d)
			if !ok {
				return data, false
			}
			return next, true
		case pagination.Collection[Post]:
			return inList(d)
		}
		return data, false
	}
}

// SetLiked sets the liked flag and moves the like count with it. It is a
// no-op when the post is already in the requested state, which makes the
// opposite call an exact inverse only while this change is still visible.
func SetLiked(liked bool) func(Post) (Post, bool) {
	return func(p Post) (Post, bool) {
		if p.Liked == liked {
			return p, false
		}
		p.Liked = liked
		if liked {
			p.LikeCount++
		} else {
			p.LikeCount--
		}
		return p, true
	}
}

// SetBookmarked sets the bookmark flag; a no-op when already in that state.
func SetBookmarked(bookmarked bool) func(Post) (Post, bool) {
	return func(p Post) (Post, bool) {
		if p.Bookmarked == bookmarked {
			return p, false
		}
		p.Bookmarked = bookmarked
		return p, true
	}
}

// AdjustCommentCount moves the comment count of a post by delta.
func AdjustCommentCount(delta int) func(Post) (Post, bool) {
	return func(p Post) (Post, bool) {
		if delta == 0 {
			return p, false
		}
		p.CommentCount += delta
		return p, true
	}
}

// ConfirmLike copies the server's like state into the cached post.
func ConfirmLike(server Post) func(Post) (Post, bool) {
	return func(p Post) (Post, bool) {
		if p.Liked == server.Liked && p.LikeCount == server.LikeCount {
			return p, false
		}
		p.Liked, p.LikeCount = server.Liked, server.LikeCount
		return p, true
	}
}

// ConfirmBookmark copies the server's bookmark flag into the cached post.
func ConfirmBookmark(server Post) func(Post) (Post, bool) {
	return func(p Post) (Post, bool) {
		if p.Bookmarked == server.Bookmarked {
			return p, false
		}
		p.Bookmarked = server.Bookmarked
		return p, true
	}
}

// AppendMessage returns a PatchFunc adding m to a Transcript of its
// conversation. A message already present, by server or client id, is not
// appended again. A local copy without a server id is replaced by m, or
// dropped when m's server id is already listed.
func AppendMessage(m Message) cache.PatchFunc {
	return func(data any) (any, bool) {
		t, ok := data.(Transcript)
		if !ok || t.ConversationID != m.ConversationID {
			return data, false
		}
		local, listed := -1, false
		for i, existing := range t.Messages {
			if !existing.SameAs(m) {
				continue
			}
			if existing.ID == "" {
				local = i
			} else {
				listed = true
			}
		}

		switch {
		case local >= 0 && m.ID == "":
			return data, false
		case local >= 0 && listed:
			t.Messages = slices.Delete(slices.Clone(t.Messages), local, local+1)
		case local >= 0:
			msgs := slices.Clone(t.Messages)
			msgs[local] = m
			t.Messages = msgs
		case listed:
			return data, false
		default:
			msgs := make([]Message, 0, len(t.Messages)+1)
			t.Messages = append(append(msgs, t.Messages...), m)
		}
		return t, true
	}
}

// RemoveMessage drops the message with the given client id from a Transcript.
func RemoveMessage(clientMessageID string) cache.PatchFunc {
	return func(data any) (any, bool) {
		t, ok := data.(Transcript)
		if !ok || clientMessageID == "" {
			return data, false
		}
		msgs := make([]Message, 0, len(t.Messages))
		for _, m := range t.Messages {
			if m.ClientMessageID != clientMessageID {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) == len(t.Messages) {
			return data, false
		}
		t.Messages = msgs
		return t, true
	}
}

// PrependNotification inserts n at the head of the notification list.
func PrependNotification(n Notification) cache.PatchFunc {
	return pagination.PrependItem(n, NotificationID)
}

// MarkNotificationsRead flags every listed notification as read.
func MarkNotificationsRead() cache.PatchFunc {
	return pagination.UpdateItems(func(n Notification) (Notification, bool) {
		if n.Read {
			return n, false
		}
		n.Read = true
		return n, true
	})
}

// AdjustUnread moves an UnreadCount by delta, never below zero.
func AdjustUnread(delta int) cache.PatchFunc {
	return func(data any) (any, bool) {
		c, ok := data.(UnreadCount)
		if !ok {
			return data, false
		}
		next := max(c.Count+delta, 0)
		if next == c.Count {
			return data, false
		}
		c.Count = next
		return c, true
	}
}

// ClearUnread resets an UnreadCount to zero.
func ClearUnread() cache.PatchFunc {
	return func(data any) (any, bool) {
		c, ok := data.(UnreadCount)
		if !ok || c.Count == 0 {
			return data, false
		}
		return UnreadCount{}, true
	}
}

// SetInvitationStatus updates one invitation in a Collection[Invitation].
func SetInvitationStatus(id string, status InvitationStatus) cache.PatchFunc {
	return pagination.UpdateItems(func(inv Invitation) (Invitation, bool) {
		if inv.ID != id || inv.Status == status {
			return inv, false
		}
		inv.Status = status
		return inv, true
	})
}

// RemoveInvitation drops one invitation from a Collection[Invitation].
func RemoveInvitation(id string) cache.PatchFunc {
	return pagination.RemoveItem(id, InvitationID)
}
