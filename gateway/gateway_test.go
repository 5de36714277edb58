package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/jonwraymond/tripsync/auth"
)

// fakeAPI accepts one bearer credential at a time and rotates it on refresh.
type fakeAPI struct {
	mu            sync.Mutex
	valid         string
	next          string
	refreshStatus int
	requireCookie bool
	seen          []string
	appKeys       []string
	logouts       []string

	refreshes atomic.Int32
	onRefresh func()
}

func newFakeAPI(t *testing.T, valid string) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{valid: valid, next: "fresh"}

	r := mux.NewRouter()
	r.HandleFunc("/auth/login", api.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", api.refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", api.logout).Methods(http.MethodPost)
	r.HandleFunc("/items/{id}", api.item).Methods(http.MethodGet)
	r.HandleFunc("/fail", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"title is required"}`))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (a *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Password != "secret" {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "refresh", Value: "r1", Path: "/auth"})
	a.mu.Lock()
	a.valid = "tok-1"
	a.mu.Unlock()
	writeJSON(w, TokenResponse{AccessToken: "tok-1", UserID: "u1"})
}

func (a *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	a.refreshes.Add(1)
	if a.onRefresh != nil {
		a.onRefresh()
	}
	if r.Header.Get("Authorization") != "" {
		http.Error(w, "refresh must not carry a bearer", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := r.Cookie("refresh"); err != nil && a.requireCookie {
		http.Error(w, "missing refresh cookie", http.StatusUnauthorized)
		return
	}
	if a.refreshStatus != 0 {
		http.Error(w, "refresh rejected", a.refreshStatus)
		return
	}
	a.valid = a.next
	writeJSON(w, TokenResponse{AccessToken: a.valid, UserID: "u1"})
}

func (a *fakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.logouts = append(a.logouts, r.Header.Get("Authorization"))
	a.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (a *fakeAPI) item(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appKeys = append(a.appKeys, r.Header.Get(AppKeyHeader))
	if r.Header.Get("Authorization") != "Bearer "+a.valid {
		http.Error(w, "expired", http.StatusUnauthorized)
		return
	}
	id := mux.Vars(r)["id"]
	a.seen = append(a.seen, id)
	writeJSON(w, map[string]string{"id": id})
}

func (a *fakeAPI) seenIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.seen)
}

func newTestGateway(t *testing.T, srv *httptest.Server, token string) (*Gateway, *auth.Session) {
	t.Helper()
	session := auth.NewSession(nil)
	if token != "" {
		if _, err := session.Begin(context.Background(), token, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	g, err := New(Config{BaseURL: srv.URL, AppKey: "app-123", Timeout: 5 * time.Second}, session)
	if err != nil {
		t.Fatal(err)
	}
	return g, session
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func (g *Gateway) queued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

type item struct {
	ID string `json:"id"`
}

func TestGateway_AttachesCredentialAndAppKey(t *testing.T) {
	api, srv := newFakeAPI(t, "tok-1")
	g, _ := newTestGateway(t, srv, "tok-1")

	got, err := Get[item](context.Background(), g, "/items/p1", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "p1" {
		t.Errorf("ID = %q, want p1", got.ID)
	}
	if api.refreshes.Load() != 0 {
		t.Errorf("unexpected refresh")
	}
	if api.appKeys[0] != "app-123" {
		t.Errorf("X-App-Key = %q", api.appKeys[0])
	}
}

func TestGateway_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 5
	api, srv := newFakeAPI(t, "fresh")
	g, session := newTestGateway(t, srv, "stale")

	refreshStarted := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	api.onRefresh = func() {
		once.Do(func() { close(refreshStarted) })
		<-release
	}

	ctx := context.Background()
	results := make([]item, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := func(i int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = Get[item](ctx, g, fmt.Sprintf("/items/r%d", i), nil)
		}()
	}

	start(0)
	<-refreshStarted
	for i := 1; i < n; i++ {
		start(i)
		waitFor(t, func() bool { return g.queued() == i })
	}
	if got := api.seenIDs(); len(got) != 0 {
		t.Fatalf("requests replayed before refresh resolved: %v", got)
	}
	close(release)
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		if results[i].ID != fmt.Sprintf("r%d", i) {
			t.Errorf("request %d got %q", i, results[i].ID)
		}
	}
	if got := api.refreshes.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	want := []string{"r0", "r1", "r2", "r3", "r4"}
	if got := api.seenIDs(); !slices.Equal(got, want) {
		t.Errorf("replay order = %v, want %v", got, want)
	}
	if cred, _ := session.Credential(); cred.Token != "fresh" {
		t.Errorf("credential = %q, want fresh", cred.Token)
	}
}

func TestGateway_ReplaysWithoutRefreshAfterRotation(t *testing.T) {
	api, srv := newFakeAPI(t, "fresh")
	g, session := newTestGateway(t, srv, "old")

	sent, _ := session.Credential()
	if err := session.Rotate("fresh"); err != nil {
		t.Fatal(err)
	}
	c, _ := newCall(Request{Path: "/items/p1"})
	if _, err := g.recover(context.Background(), c, &sent); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if api.refreshes.Load() != 0 {
		t.Errorf("refresh issued for a request that predates rotation")
	}
	if got := api.seenIDs(); !slices.Equal(got, []string{"p1"}) {
		t.Errorf("seen = %v", got)
	}
}

func TestGateway_RefreshFailureExpiresSession(t *testing.T) {
	api, srv := newFakeAPI(t, "fresh")
	api.refreshStatus = http.StatusUnauthorized
	g, session := newTestGateway(t, srv, "stale")

	var reasons []auth.EndReason
	session.OnEnd(func(_ context.Context, _ *auth.Identity, r auth.EndReason) { reasons = append(reasons, r) })

	refreshStarted := make(chan struct{})
	release := make(chan struct{})
	api.onRefresh = func() {
		close(refreshStarted)
		<-release
	}

	ctx := context.Background()
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = g.Do(ctx, Request{Path: "/items/a"})
	}()
	<-refreshStarted
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = g.Do(ctx, Request{Path: "/items/b"})
	}()
	waitFor(t, func() bool { return g.queued() == 1 })
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrAuthExpired) {
			t.Errorf("request %d: got %v, want ErrAuthExpired", i, err)
		}
	}
	if StatusOf(errs[0]) != http.StatusUnauthorized {
		t.Errorf("refresh status not carried: %v", errs[0])
	}
	if session.Active() {
		t.Error("session still active after failed refresh")
	}
	if !slices.Equal(reasons, []auth.EndReason{auth.EndRefreshFailed}) {
		t.Errorf("end reasons = %v", reasons)
	}
	if api.refreshes.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", api.refreshes.Load())
	}
}

func TestGateway_NonAuthErrorsPassThrough(t *testing.T) {
	api, srv := newFakeAPI(t, "tok-1")
	g, _ := newTestGateway(t, srv, "tok-1")

	_, err := g.Do(context.Background(), Request{Method: http.MethodPost, Path: "/fail", Body: map[string]string{}})
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *ServerError", err)
	}
	if se.Status != http.StatusUnprocessableEntity || se.Message != "title is required" || !se.ClientError() {
		t.Errorf("unexpected server error %+v", se)
	}
	if api.refreshes.Load() != 0 {
		t.Error("validation error triggered a refresh")
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	g2, _ := newTestGateway(t, closed, "tok-1")
	_, err = g2.Do(context.Background(), Request{Path: "/items/x"})
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("got %v, want *NetworkError", err)
	}
	if ne.Op != "GET /items/x" {
		t.Errorf("Op = %q", ne.Op)
	}
}

func TestGateway_WithoutCredentialSkipsRefresh(t *testing.T) {
	api, srv := newFakeAPI(t, "tok-1")
	g, _ := newTestGateway(t, srv, "tok-1")

	_, err := g.Do(auth.WithoutCredential(context.Background()), Request{Path: "/items/p1"})
	if StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("got %v, want 401", err)
	}
	if api.refreshes.Load() != 0 {
		t.Error("unauthenticated request triggered a refresh")
	}
}

func TestGateway_LoginRefreshLogout(t *testing.T) {
	api, srv := newFakeAPI(t, "")
	api.requireCookie = true
	g, session := newTestGateway(t, srv, "")
	ctx := context.Background()

	if _, err := g.Login(ctx, Credentials{Email: "a@example.com", Password: "wrong"}); StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("bad login: got %v", err)
	}
	if session.Active() {
		t.Fatal("failed login began a session")
	}

	id, err := g.Login(ctx, Credentials{Email: "a@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id.UserID != "u1" {
		t.Errorf("UserID = %q", id.UserID)
	}

	api.mu.Lock()
	api.next = "tok-2"
	api.mu.Unlock()
	if err := g.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if cred, _ := session.Credential(); cred.Token != "tok-2" {
		t.Errorf("credential after refresh = %q", cred.Token)
	}

	// A second gateway sharing the cookie jar restores a session from it.
	restored := auth.NewSession(nil)
	g2, err := New(Config{BaseURL: srv.URL, HTTPClient: g.client}, restored)
	if err != nil {
		t.Fatal(err)
	}
	if err := g2.Refresh(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Identity().UserID != "u1" {
		t.Errorf("restored identity = %+v", restored.Identity())
	}

	if err := g.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if session.Active() {
		t.Error("session active after logout")
	}
	if len(api.logouts) != 1 || !strings.HasPrefix(api.logouts[0], "Bearer ") {
		t.Errorf("logout calls = %v", api.logouts)
	}
	if err := g.Logout(ctx); err != nil {
		t.Errorf("second Logout: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	s := auth.NewSession(nil)
	tests := []struct {
		name    string
		cfg     Config
		session *auth.Session
		want    error
	}{
		{"nil session", Config{BaseURL: "https://api.example.com"}, nil, ErrNilSession},
		{"missing url", Config{}, s, ErrMissingBaseURL},
		{"relative url", Config{BaseURL: "/v1"}, s, ErrInvalidBaseURL},
		{"bad scheme", Config{BaseURL: "ftp://example.com"}, s, ErrInvalidBaseURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.session); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	g, err := New(Config{BaseURL: "https://api.example.com/v1"}, s)
	if err != nil {
		t.Fatal(err)
	}
	if g.cfg.Timeout != DefaultTimeout || g.client.Jar == nil {
		t.Errorf("defaults not applied: %+v", g.cfg)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message":"nope"}`, "nope"},
		{`{"error":"bad input"}`, "bad input"},
		{"  plain text \n", "plain text"},
		{`{"code":7}`, ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
