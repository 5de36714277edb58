package realtime

import (
	"context"

	"github.com/jonwraymond/tripsync/health"
)

// Checker reports the connection state as a health check.
func (r *Reconciler) Checker() health.Checker {
	return health.NewCheckerFunc("realtime", func(context.Context) health.Result {
		r.mu.Lock()
		state, user, peers := r.state, r.userID, len(r.presence)
		r.mu.Unlock()

		details := map[string]any{"state": state.String(), "user_id": user, "online_peers": peers}
		switch state {
		case StateConnected:
			return health.Healthy("connected").WithDetails(details)
		case StateConnecting, StateReconnecting:
			return health.Degraded(state.String()).WithDetails(details)
		default:
			return health.Unhealthy("not connected", ErrNotConnected).WithDetails(details)
		}
	})
}
