package auth

import (
	"context"
	"sync"

	"github.com/jonwraymond/tripsync/observe"
)

// EndReason says why a session ended.
type EndReason string

const (
	EndLogout        EndReason = "logout"
	EndRefreshFailed EndReason = "refresh_failed"
	EndReplaced      EndReason = "replaced"
	EndClosed        EndReason = "closed"
)

// Credential is the access credential together with the generation it was
// issued in. The generation changes on every Begin, Rotate and End.
type Credential struct {
	Token      string
	Generation uint64
}

// BeginHook runs after a session begins.
type BeginHook func(ctx context.Context, id *Identity)

// EndHook runs while a session ends, after the credential is cleared.
type EndHook func(ctx context.Context, id *Identity, reason EndReason)

// Session is the authenticated identity and credential lifecycle shared by
// the data layer.
//
// Contract:
//   - Concurrency: safe for concurrent use. Begin and End are serialized and
//     run their hooks synchronously, in registration order.
//   - Hooks may read the session but must not call Begin, Rotate or End.
type Session struct {
	lifecycle sync.Mutex

	mu         sync.RWMutex
	token      string
	generation uint64
	identity   *Identity
	beginHooks []BeginHook
	endHooks   []EndHook

	logger observe.Logger
}

// NewSession creates an inactive session.
func NewSession(logger observe.Logger) *Session {
	return &Session{logger: observe.OrNop(logger)}
}

// OnBegin registers a hook run after every Begin.
func (s *Session) OnBegin(h BeginHook) {
	s.mu.Lock()
	s.beginHooks = append(s.beginHooks, h)
	s.mu.Unlock()
}

// OnEnd registers a hook run on every End.
func (s *Session) OnEnd(h EndHook) {
	s.mu.Lock()
	s.endHooks = append(s.endHooks, h)
	s.mu.Unlock()
}

// Begin starts a session for credential. userID is required for opaque
// credentials and overrides the token claims otherwise. An active session
// for another credential is ended first with EndReplaced.
func (s *Session) Begin(ctx context.Context, credential, userID string) (*Identity, error) {
	id, err := identityFor(credential, userID)
	if err != nil {
		return nil, err
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.Active() {
		s.end(ctx, EndReplaced)
	}

	s.mu.Lock()
	s.token = credential
	s.identity = id
	s.generation++
	hooks := append([]BeginHook(nil), s.beginHooks...)
	s.mu.Unlock()

	s.logger.Info(ctx, "session started",
		observe.F("user_id", id.UserID),
		observe.F("method", string(id.Method)),
	)
	for _, h := range hooks {
		h(ctx, id)
	}
	return id, nil
}

// Rotate replaces the access credential of the active session, keeping its user.
func (s *Session) Rotate(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ErrNoSession
	}
	id, err := identityFor(credential, s.identity.UserID)
	if err != nil {
		return err
	}
	s.token = credential
	s.identity = id
	s.generation++
	return nil
}

// End tears the session down: the credential is cleared and every end hook
// runs before End returns. It reports false if no session was active.
func (s *Session) End(ctx context.Context, reason EndReason) bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.end(ctx, reason)
}

func (s *Session) end(ctx context.Context, reason EndReason) bool {
	s.mu.Lock()
	id := s.identity
	if id == nil {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	s.identity = nil
	s.generation++
	hooks := append([]EndHook(nil), s.endHooks...)
	s.mu.Unlock()

	s.logger.Info(ctx, "session ended",
		observe.F("user_id", id.UserID),
		observe.F("reason", string(reason)),
	)
	for _, h := range hooks {
		h(ctx, id, reason)
	}
	return true
}

// Credential returns the current access credential.
func (s *Session) Credential() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Credential{Generation: s.generation}, false
	}
	return Credential{Token: s.token, Generation: s.generation}, true
}

// Identity returns the active identity, or nil.
func (s *Session) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Active reports whether a session is in progress.
func (s *Session) Active() bool {
	return s.Identity() != nil
}
