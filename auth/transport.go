package auth

import (
	"fmt"
	"net/http"
)

// BearerHeader renders credential as an Authorization header value.
func BearerHeader(credential string) string {
	return fmt.Sprintf("Bearer %s", credential)
}

// Attach sets the Authorization header on req. An empty credential removes it.
func Attach(req *http.Request, credential string) {
	if credential == "" {
		req.Header.Del("Authorization")
		return
	}
	req.Header.Set("Authorization", BearerHeader(credential))
}

// Header returns the headers a credentialed connection carries, or an empty
// header when the session is not active.
func (s *Session) Header() http.Header {
	h := http.Header{}
	if cred, ok := s.Credential(); ok {
		h.Set("Authorization", BearerHeader(cred.Token))
	}
	return h
}
