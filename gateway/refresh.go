package gateway

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/tripsync/auth"
	"github.com/jonwraymond/tripsync/observe"
)

type outcome struct {
	resp *Response
	err  error
}

// waiter is a request parked behind the refresh in flight. A nil call only
// waits for the refresh outcome.
type waiter struct {
	ctx  context.Context
	call *call
	done chan outcome
}

// Refresh obtains a new access credential from the refresh endpoint. With
// an active session the credential is rotated; otherwise a session is
// restored from the refresh cookie. A refresh already in flight is joined
// instead of issuing a second one.
func (g *Gateway) Refresh(ctx context.Context) error {
	_, err := g.recover(ctx, nil, nil)
	return err
}

// recover handles a 401 for c, which was sent with credential sent.
func (g *Gateway) recover(ctx context.Context, c *call, sent *auth.Credential) (*Response, error) {
	g.mu.Lock()
	if sent != nil {
		current, ok := g.session.Credential()
		if !ok {
			g.mu.Unlock()
			return nil, ErrAuthExpired
		}
		// Rotated after c was sent: the credential c carried is already
		// superseded, so c only needs a replay.
		if current.Generation != sent.Generation && !g.refreshing {
			g.mu.Unlock()
			return g.replay(ctx, c)
		}
	}

	if g.refreshing {
		w := &waiter{ctx: ctx, call: c, done: make(chan outcome, 1)}
		g.waiters = append(g.waiters, w)
		g.mu.Unlock()

		select {
		case out := <-w.done:
			return out.resp, out.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.refreshing = true
	g.mu.Unlock()
	return g.lead(ctx, c)
}

// lead runs the refresh, then replays c followed by every queued waiter.
func (g *Gateway) lead(ctx context.Context, c *call) (*Response, error) {
	err := g.refresh(ctx)

	g.mu.Lock()
	waiters := g.waiters
	g.waiters = nil
	g.refreshing = false
	g.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrAuthExpired, err)
		g.expire(ctx, err, waiters)
		return nil, err
	}

	var out outcome
	if c != nil {
		out.resp, out.err = g.replay(ctx, c)
	}
	if len(waiters) > 0 {
		go g.replayQueued(waiters)
	}
	return out.resp, out.err
}

// replayQueued replays waiters one at a time, in queue order.
func (g *Gateway) replayQueued(waiters []*waiter) {
	for _, w := range waiters {
		if err := w.ctx.Err(); err != nil {
			w.done <- outcome{err: err}
			continue
		}
		var out outcome
		if w.call != nil {
			out.resp, out.err = g.replay(w.ctx, w.call)
		}
		w.done <- out
	}
}

// replay resends c once with the current credential. A second 401 is
// returned as a *ServerError.
func (g *Gateway) replay(ctx context.Context, c *call) (*Response, error) {
	cred, ok := g.session.Credential()
	if !ok {
		return nil, ErrAuthExpired
	}
	return g.send(ctx, c, cred.Token)
}

// expire ends the session and fails every waiter with err.
func (g *Gateway) expire(ctx context.Context, err error, waiters []*waiter) {
	g.logger.Warn(ctx, "credential refresh failed",
		observe.F("error", err),
		observe.F("waiters", len(waiters)),
	)
	g.session.End(context.WithoutCancel(ctx), auth.EndRefreshFailed)
	for _, w := range waiters {
		w.done <- outcome{err: err}
	}
}

// refresh calls the refresh endpoint. It runs detached from ctx's
// cancellation: other requests may be queued behind it.
func (g *Gateway) refresh(ctx context.Context) error {
	ctx = auth.WithoutCredential(context.WithoutCancel(ctx))
	op := observe.Operation{Kind: observe.KindRefresh, Name: RefreshPath}

	err := g.mw.Run(ctx, op, func(ctx context.Context) error {
		g.logger.Debug(ctx, "refreshing credential")
		resp, err := g.Do(ctx, Request{Method: http.MethodPost, Path: RefreshPath})
		if err != nil {
			return err
		}
		var tok TokenResponse
		if err := resp.Decode(&tok); err != nil {
			return err
		}
		if tok.AccessToken == "" {
			return ErrEmptyCredential
		}
		if g.session.Active() {
			return g.session.Rotate(tok.AccessToken)
		}
		_, err = g.session.Begin(ctx, tok.AccessToken, tok.UserID)
		return err
	})

	g.mw.Metrics().RecordEvent(ctx, "gateway.refresh", attribute.Bool("ok", err == nil))
	if err == nil {
		g.logger.Info(ctx, "credential refreshed")
	}
	return err
}
