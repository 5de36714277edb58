package health

import (
	"context"
	"time"

	"github.com/jonwraymond/tripsync/auth"
)

// SessionChecker reports the session: unhealthy when signed out, degraded
// when the access credential has expired or expires within warn (the next
// request will have to refresh it), healthy otherwise.
func SessionChecker(s *auth.Session, warn time.Duration) Checker {
	return NewCheckerFunc("session", func(context.Context) Result {
		id := s.Identity()
		if id == nil {
			return Unhealthy("signed out", ErrNoSession)
		}

		details := map[string]any{"user_id": id.UserID, "method": string(id.Method)}
		if !id.ExpiresAt.IsZero() {
			details["expires_at"] = id.ExpiresAt.UTC().Format(time.RFC3339)
		}
		switch {
		case id.IsExpired():
			return Degraded("credential expired").WithDetails(details)
		case id.ExpiresWithin(warn):
			return Degraded("credential expiring").WithDetails(details)
		default:
			return Healthy("signed in").WithDetails(details)
		}
	})
}
