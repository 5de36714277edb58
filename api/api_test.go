package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/jonwraymond/tripsync/auth"
	"github.com/jonwraymond/tripsync/cache"
	"github.com/jonwraymond/tripsync/entity"
	"github.com/jonwraymond/tripsync/gateway"
	"github.com/jonwraymond/tripsync/mutation"
	"github.com/jonwraymond/tripsync/pagination"
)

// backend is an in-memory server for the catalogue endpoints.
type backend struct {
	mu         sync.Mutex
	posts      map[string]entity.Post
	order      []string
	comments   []entity.Comment
	messages   []entity.Message
	notes      []entity.Notification
	invites    []entity.Invitation
	otherLikes int
	fail       map[string]bool
	hold       map[string]chan struct{}
	gets       map[string]int
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{
		posts: map[string]entity.Post{
			"p1": {ID: "p1", AuthorID: "bob", LikeCount: 10},
			"p2": {ID: "p2", AuthorID: "bob"},
			"p3": {ID: "p3", AuthorID: "carol"},
		},
		order:    []string{"p1", "p2", "p3"},
		messages: []entity.Message{{ID: "m1", ConversationID: "c1", SenderID: "bob", Body: "hi"}},
		notes: []entity.Notification{
			{ID: "n1", Kind: "like"},
			{ID: "n2", Kind: "comment", Read: true},
		},
		invites: []entity.Invitation{
			{ID: "i1", TripID: "t9", Status: entity.InvitationPending},
			{ID: "i2", TripID: "t8", Status: entity.InvitationPending},
		},
		fail: make(map[string]bool),
		hold: make(map[string]chan struct{}),
		gets: make(map[string]int),
	}

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodGet {
				b.mu.Lock()
				b.gets[req.URL.Path]++
				b.mu.Unlock()
			}
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/feed", b.feed).Methods(http.MethodGet)
	r.HandleFunc("/posts", b.createPost).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}", b.post).Methods(http.MethodGet, http.MethodDelete)
	r.HandleFunc("/posts/{id}/like", b.like).Methods(http.MethodPost, http.MethodDelete)
	r.HandleFunc("/posts/{id}/comments", b.commentList).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/trips", b.trips).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", b.transcript).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/notifications", b.notifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/unread-count", b.unread).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read", b.readAll).Methods(http.MethodPost)
	r.HandleFunc("/invitations", b.invitations).Methods(http.MethodGet)
	r.HandleFunc("/invitations/{id}/{verb}", b.answer).Methods(http.MethodPost)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// gate blocks the named route until the returned release func is called.
func (b *backend) gate(t *testing.T, name string) func() {
	t.Helper()
	ch := make(chan struct{})
	b.mu.Lock()
	b.hold[name] = ch
	b.mu.Unlock()
	var once sync.Once
	release := func() { once.Do(func() { close(ch) }) }
	t.Cleanup(release)
	return release
}

// enter waits on the gate for name and reports whether the route should fail.
func (b *backend) enter(name string) bool {
	b.mu.Lock()
	ch, failing := b.hold[name], b.fail[name]
	b.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return failing
}

func (b *backend) failRoute(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[name] = true
}

func (b *backend) getCount(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets[path]
}

func (b *backend) feed(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for _, id := range b.order {
		if _, ok := b.posts[id]; ok {
			ids = append(ids, id)
		}
	}
	page := pagination.Page[entity.Post]{}
	start := 0
	if r.URL.Query().Get("cursor") == "c2" {
		start = 2
	}
	for i := start; i < len(ids) && i < start+2; i++ {
		page.Items = append(page.Items, b.posts[ids[i]])
	}
	if start+2 < len(ids) {
		page.NextCursor, page.HasMore = "c2", true
	}
	writeJSON(w, page)
}

func (b *backend) createPost(w http.ResponseWriter, r *http.Request) {
	var in NewPost
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	defer b.mu.Unlock()
	p := entity.Post{ID: "p0", AuthorID: "me", Caption: in.Caption}
	b.posts[p.ID] = p
	b.order = append([]string{p.ID}, b.order...)
	writeJSON(w, p)
}

func (b *backend) post(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.posts[id]
	if !ok {
		http.Error(w, `{"message":"post not found"}`, http.StatusNotFound)
		return
	}
	if r.Method == http.MethodDelete {
		delete(b.posts, id)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, p)
}

func (b *backend) like(w http.ResponseWriter, r *http.Request) {
	if b.enter("like") {
		http.Error(w, `{"message":"like failed"}`, http.StatusInternalServerError)
		return
	}
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.posts[id]
	p.Liked = r.Method == http.MethodPost
	if p.Liked {
		p.LikeCount += 1 + b.otherLikes
	} else {
		p.LikeCount--
	}
	b.posts[id] = p
	writeJSON(w, p)
}

func (b *backend) commentList(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.Method == http.MethodPost {
		var in commentBody
		_ = json.NewDecoder(r.Body).Decode(&in)
		c := entity.Comment{ID: "k1", PostID: id, AuthorID: "me", Body: in.Body}
		b.comments = append(b.comments, c)
		p := b.posts[id]
		p.CommentCount++
		b.posts[id] = p
		writeJSON(w, c)
		return
	}
	writeJSON(w, pagination.Page[entity.Comment]{Items: b.comments})
}

func (b *backend) trips(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var in NewTrip
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, entity.Trip{ID: "t1", OwnerID: "me", Title: in.Title})
		return
	}
	writeJSON(w, []entity.Trip{{ID: "t8"}})
}

func (b *backend) transcript(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if r.Method == http.MethodGet {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, entity.Transcript{Messages: b.messages})
		return
	}
	var in messageBody
	_ = json.NewDecoder(r.Body).Decode(&in)
	if b.enter("message") {
		http.Error(w, `{"message":"send failed"}`, http.StatusBadGateway)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	m := entity.Message{ID: "m2", ClientMessageID: in.ClientMessageID, ConversationID: id, SenderID: "me", Body: in.Body}
	b.messages = append(b.messages, m)
	writeJSON(w, m)
}

func (b *backend) notifications(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, pagination.Page[entity.Notification]{Items: b.notes})
}

func (b *backend) unread(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, note := range b.notes {
		if !note.Read {
			n++
		}
	}
	writeJSON(w, entity.UnreadCount{Count: n})
}

func (b *backend) readAll(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notes {
		b.notes[i].Read = true
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *backend) invitations(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, pagination.Page[entity.Invitation]{Items: b.invites})
}

func (b *backend) answer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, inv := range b.invites {
		if inv.ID != vars["id"] {
			continue
		}
		inv.Status = entity.InvitationAccepted
		if vars["verb"] == "decline" {
			inv.Status = entity.InvitationDeclined
		}
		b.invites = slices.Delete(b.invites, i, i+1)
		writeJSON(w, inv)
		return
	}
	http.NotFound(w, r)
}

type announcer struct {
	mu    sync.Mutex
	sent  []entity.Message
	stops []string
}

func (a *announcer) AnnounceMessage(m entity.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, m)
	return nil
}

func (a *announcer) StopTyping(conversationID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops = append(a.stops, conversationID)
	return nil
}

type harness struct {
	b     *backend
	api   *API
	store *cache.Store
	an    *announcer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b, srv := newBackend(t)
	session := auth.NewSession(nil)
	if _, err := session.Begin(context.Background(), "tok", "me"); err != nil {
		t.Fatal(err)
	}
	gw, err := gateway.New(gateway.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, session)
	if err != nil {
		t.Fatal(err)
	}
	store := cache.NewStore(cache.DefaultPolicy())
	t.Cleanup(store.Close)
	d := mutation.NewDispatcher(store)
	t.Cleanup(d.Close)

	an := &announcer{}
	return &harness{
		b:     b,
		api:   New(gw, store, d, WithAnnouncer(an), WithSettle(100*time.Millisecond)),
		store: store,
		an:    an,
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func postIDs(posts []entity.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestFeed_AccumulatesPages(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	feed, err := h.api.Feed()
	if err != nil {
		t.Fatal(err)
	}
	defer feed.Close()

	first, err := feed.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(postIDs(first.Items), []string{"p1", "p2"}) || !first.HasMore {
		t.Fatalf("first page = %v hasMore=%v", postIDs(first.Items), first.HasMore)
	}

	if err := feed.FetchNext(ctx); err != nil {
		t.Fatal(err)
	}
	all := feed.Collection()
	if !slices.Equal(postIDs(all.Items), []string{"p1", "p2", "p3"}) || all.HasMore {
		t.Errorf("after FetchNext = %v hasMore=%v", postIDs(all.Items), all.HasMore)
	}
	if err := feed.FetchNext(ctx); err != nil {
		t.Fatal(err)
	}
	if got := h.b.getCount("/feed"); got != 2 {
		t.Errorf("feed requests = %d, want 2", got)
	}
}

func likeState(t *testing.T, h *harness, key cache.Key) (bool, int) {
	t.Helper()
	snap, ok := h.store.Peek(key)
	if !ok {
		t.Fatalf("no entry %s", key)
	}
	switch d := snap.Data.(type) {
	case entity.Post:
		return d.Liked, d.LikeCount
	case pagination.Collection[entity.Post]:
		for _, p := range d.Items {
			if p.ID == "p1" {
				return p.Liked, p.LikeCount
			}
		}
	}
	t.Fatalf("p1 not in %s", key)
	return false, 0
}

func subscribePost(t *testing.T, h *harness) {
	t.Helper()
	ctx := testContext(t)
	feed, err := h.api.Feed()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(feed.Close)
	if _, err := feed.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	post, err := h.api.Post("p1")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(post.Close)
	if _, err := post.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSetLiked_OptimisticThenServerValue(t *testing.T) {
	h := newHarness(t)
	subscribePost(t, h)
	h.b.mu.Lock()
	h.b.otherLikes = 5
	h.b.mu.Unlock()
	release := h.b.gate(t, "like")

	done := make(chan error, 1)
	go func() {
		_, err := h.api.SetLiked(context.Background(), "p1", true)
		done <- err
	}()

	for _, key := range []cache.Key{entity.PostKey("p1"), entity.FeedKey()} {
		waitFor(t, "optimistic like on "+key.String(), func() bool {
			liked, n := likeState(t, h, key)
			return liked && n == 11
		})
	}
	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	for _, key := range []cache.Key{entity.PostKey("p1"), entity.FeedKey()} {
		if liked, n := likeState(t, h, key); !liked || n != 16 {
			t.Errorf("%s: liked=%v count=%d, want server count 16", key, liked, n)
		}
	}
	if got := h.b.getCount("/posts/p1"); got != 1 {
		t.Errorf("post refetched after confirmed like: %d requests", got)
	}
}

func TestSetLiked_FailureRollsBack(t *testing.T) {
	h := newHarness(t)
	subscribePost(t, h)
	h.b.failRoute("like")

	_, err := h.api.SetLiked(testContext(t), "p1", true)
	var merr *mutation.Error
	if !errors.As(err, &merr) || !merr.RolledBack {
		t.Fatalf("err = %v, want rolled back mutation error", err)
	}
	if gateway.StatusOf(err) != http.StatusInternalServerError {
		t.Errorf("status = %d", gateway.StatusOf(err))
	}
	for _, key := range []cache.Key{entity.PostKey("p1"), entity.FeedKey()} {
		if liked, n := likeState(t, h, key); liked || n != 10 {
			t.Errorf("%s not restored: liked=%v count=%d", key, liked, n)
		}
	}
}

func TestSendMessage_LocalCopyReplacedByServer(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	transcript, err := h.api.Transcript("c1")
	if err != nil {
		t.Fatal(err)
	}
	defer transcript.Close()
	if tr, err := transcript.Wait(ctx); err != nil || tr.ConversationID != "c1" || len(tr.Messages) != 1 {
		t.Fatalf("transcript = %+v, %v", tr, err)
	}

	release := h.b.gate(t, "message")
	done := make(chan entity.Message, 1)
	go func() {
		m, err := h.api.SendMessage(context.Background(), "c1", "on my way")
		if err != nil {
			t.Error(err)
		}
		done <- m
	}()

	waitFor(t, "local copy", func() bool {
		tr, _ := transcript.Data()
		return len(tr.Messages) == 2
	})
	tr, _ := transcript.Data()
	local := tr.Messages[1]
	if local.ID != "" || local.ClientMessageID == "" || local.SenderID != "me" {
		t.Errorf("local copy = %+v", local)
	}

	release()
	sent := <-done
	if sent.ID != "m2" || sent.ClientMessageID != local.ClientMessageID {
		t.Errorf("sent = %+v", sent)
	}
	tr, _ = transcript.Data()
	if len(tr.Messages) != 2 || tr.Messages[1].ID != "m2" {
		t.Errorf("transcript after send = %+v", tr.Messages)
	}

	h.an.mu.Lock()
	defer h.an.mu.Unlock()
	if len(h.an.sent) != 1 || h.an.sent[0].ID != "m2" {
		t.Errorf("announced = %+v", h.an.sent)
	}
	if !slices.Equal(h.an.stops, []string{"c1"}) {
		t.Errorf("typing stops = %v", h.an.stops)
	}
}

func TestSendMessage_EchoBeforeReply(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	transcript, err := h.api.Transcript("c1")
	if err != nil {
		t.Fatal(err)
	}
	defer transcript.Close()
	if _, err := transcript.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	release := h.b.gate(t, "message")
	done := make(chan error, 1)
	go func() {
		_, err := h.api.SendMessage(context.Background(), "c1", "on my way")
		done <- err
	}()
	waitFor(t, "local copy", func() bool {
		tr, _ := transcript.Data()
		return len(tr.Messages) == 2
	})
	tr, _ := transcript.Data()
	echo := tr.Messages[1]
	echo.ID = "m2"
	if !h.store.Patch(entity.TranscriptKey("c1"), entity.AppendMessage(echo)) {
		t.Fatal("echo not applied")
	}

	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	tr, _ = transcript.Data()
	if len(tr.Messages) != 2 || tr.Messages[1].ID != "m2" {
		t.Errorf("transcript after send = %+v", tr.Messages)
	}
}

func TestSendMessage_FailureRemovesLocalCopy(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	transcript, err := h.api.Transcript("c1")
	if err != nil {
		t.Fatal(err)
	}
	defer transcript.Close()
	if _, err := transcript.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	h.b.failRoute("message")
	if _, err := h.api.SendMessage(ctx, "c1", "lost"); gateway.StatusOf(err) != http.StatusBadGateway {
		t.Fatalf("err = %v", err)
	}
	tr, _ := transcript.Data()
	if len(tr.Messages) != 1 || tr.Messages[0].ID != "m1" {
		t.Errorf("transcript = %+v", tr.Messages)
	}
	if len(h.an.sent) != 0 {
		t.Error("failed message announced")
	}
}

func TestAcceptInvitation_SettlesThenLeavesList(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	invites, err := h.api.Invitations()
	if err != nil {
		t.Fatal(err)
	}
	defer invites.Close()
	if _, err := invites.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	trips, err := h.api.Trips()
	if err != nil {
		t.Fatal(err)
	}
	defer trips.Close()
	if _, err := trips.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	inv, err := h.api.AcceptInvitation(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if inv.TripID != "t9" || inv.Status != entity.InvitationAccepted {
		t.Errorf("reply = %+v", inv)
	}
	items := invites.Collection().Items
	if len(items) != 2 || items[0].Status != entity.InvitationAccepted {
		t.Errorf("not shown as accepted: %+v", items)
	}

	waitFor(t, "invitation removed", func() bool { return len(invites.Collection().Items) == 1 })
	waitFor(t, "trips refetched", func() bool { return h.b.getCount("/trips") == 2 })

	if err := h.api.DeclineInvitation(ctx, "i2"); err != nil {
		t.Fatal(err)
	}
	if n := len(invites.Collection().Items); n != 0 {
		t.Errorf("declined invitation still listed (%d items)", n)
	}
}

func TestMarkNotificationsRead(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	list, err := h.api.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	defer list.Close()
	if _, err := list.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	badge, err := h.api.UnreadNotificationCount()
	if err != nil {
		t.Fatal(err)
	}
	defer badge.Close()
	if c, err := badge.Wait(ctx); err != nil || c.Count != 1 {
		t.Fatalf("badge = %+v, %v", c, err)
	}

	if err := h.api.MarkNotificationsRead(ctx); err != nil {
		t.Fatal(err)
	}
	for _, n := range list.Collection().Items {
		if !n.Read {
			t.Errorf("%s still unread", n.ID)
		}
	}
	if c, _ := badge.Data(); c.Count != 0 {
		t.Errorf("badge = %d", c.Count)
	}
	if h.b.getCount("/notifications") != 1 || h.b.getCount("/notifications/unread-count") != 1 {
		t.Error("read marks triggered a refetch")
	}
}

func TestAddComment(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	subscribePost(t, h)

	comments, err := h.api.Comments("p1")
	if err != nil {
		t.Fatal(err)
	}
	defer comments.Close()
	if _, err := comments.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	c, err := h.api.AddComment(ctx, "p1", "nice")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "k1" {
		t.Errorf("comment = %+v", c)
	}
	waitFor(t, "comments refetched", func() bool { return len(comments.Collection().Items) == 1 })

	snap, _ := h.store.Peek(entity.PostKey("p1"))
	if p := snap.Data.(entity.Post); p.CommentCount != 1 {
		t.Errorf("CommentCount = %d", p.CommentCount)
	}
}

func TestCreateAndDeletePost(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	feed, err := h.api.Feed()
	if err != nil {
		t.Fatal(err)
	}
	defer feed.Close()
	if _, err := feed.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	if err := h.api.DeletePost(ctx, "p2"); err != nil {
		t.Fatal(err)
	}
	if ids := postIDs(feed.Collection().Items); !slices.Equal(ids, []string{"p1"}) {
		t.Errorf("feed after delete = %v", ids)
	}

	p, err := h.api.CreatePost(ctx, NewPost{Caption: "sunset"})
	if err != nil {
		t.Fatal(err)
	}
	if p.AuthorID != "me" {
		t.Errorf("post = %+v", p)
	}
	waitFor(t, "feed refetched", func() bool {
		ids := postIDs(feed.Collection().Items)
		return len(ids) > 0 && ids[0] == "p0"
	})
}

func TestCreateTrip(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)
	trips, err := h.api.Trips()
	if err != nil {
		t.Fatal(err)
	}
	defer trips.Close()
	if _, err := trips.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	trip, err := h.api.CreateTrip(ctx, NewTrip{Title: "Lisbon"})
	if err != nil || trip.Title != "Lisbon" {
		t.Fatalf("trip = %+v, %v", trip, err)
	}
	waitFor(t, "trips refetched", func() bool { return h.b.getCount("/trips") == 2 })
}

func TestValidation(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	if _, err := h.api.Post(""); !errors.Is(err, ErrMissingID) {
		t.Errorf("Post: %v", err)
	}
	if _, err := h.api.SetLiked(ctx, "", true); !errors.Is(err, ErrMissingID) {
		t.Errorf("SetLiked: %v", err)
	}
	if _, err := h.api.AddComment(ctx, "p1", "  "); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("AddComment: %v", err)
	}
	if _, err := h.api.SendMessage(ctx, "c1", ""); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("SendMessage: %v", err)
	}

	h.api.gw.Session().End(ctx, auth.EndLogout)
	if _, err := h.api.SendMessage(ctx, "c1", "hello"); !errors.Is(err, ErrNoSession) {
		t.Errorf("SendMessage without session: %v", err)
	}
}
