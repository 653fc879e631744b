package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// ClientSessionCookie is the presence cookie the route guard checks. It is
// advisory only; API handlers validate the real session token.
const ClientSessionCookie = "client_session"

// publicPages can be visited without a session cookie.
var publicPages = map[string]bool{
	"/":              true,
	"/login":         true,
	"/signup":        true,
	"/stress-check":  true,
	"/reports":       true,
	"/auth/callback": true,
}

// RouteGuard redirects page requests without a session cookie to the login
// page, carrying the original path in redirectedFrom. API, WebSocket, and
// static asset requests pass through untouched.
func RouteGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !guardedPage(path) {
			next.ServeHTTP(w, r)
			return
		}

		if c, err := r.Cookie(ClientSessionCookie); err == nil && c.Value != "" {
			next.ServeHTTP(w, r)
			return
		}

		http.Redirect(w, r, "/login?redirectedFrom="+url.QueryEscape(path), http.StatusTemporaryRedirect)
	})
}

func guardedPage(path string) bool {
	if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/ws/") {
		return false
	}
	if path == "/health" || publicPages[path] {
		return false
	}
	// Static assets are never guarded.
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		return false
	}
	return true
}
