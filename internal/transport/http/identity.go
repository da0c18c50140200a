package http

import (
	"net/http"
	"strings"
)

// IdentityFunc resolves the authenticated user of a request. An empty id means anonymous.
type IdentityFunc func(r *http.Request) string

// HeaderIdentity trusts the X-User-ID header set by the gateway, falling back to the
// userId query parameter for browser websocket clients that cannot set headers.
func HeaderIdentity(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}
