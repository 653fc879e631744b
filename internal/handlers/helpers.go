package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stresscall/stresscall-backend/internal/services"
)

const (
	// AnonScopeCookieName carries the anonymous browser scope id. Issued on
	// first contact, ten-year lifetime: the anonymous quota is
	// lifetime-per-browser.
	AnonScopeCookieName = "anon_scope"
	// ClientSessionCookieName is the presence-only cookie the route guard
	// checks. It is a UI hint, never an authorization proof.
	ClientSessionCookieName = "client_session"

	anonScopeCookieMaxAge = 10 * 365 * 24 * 60 * 60
	sessionCookieMaxAge   = 7 * 24 * 60 * 60
)

// extractBearerToken pulls the token out of an "Authorization: Bearer ..." header.
func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// currentAccount returns the authenticated account's ID, or nil when the
// request carries no valid session.
func currentAccount(r *http.Request) *uuid.UUID {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil
	}
	accountID, ok, err := services.ValidateSession(token)
	if err != nil || !ok {
		return nil
	}
	return &accountID
}

// anonScopeID returns the request's anonymous scope id, issuing a fresh one
// via Set-Cookie when the browser has none yet.
func anonScopeID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(AnonScopeCookieName); err == nil && c.Value != "" {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	scopeID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     AnonScopeCookieName,
		Value:    scopeID,
		Path:     "/",
		MaxAge:   anonScopeCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return scopeID
}

// resolveIdentity picks the caller's identity scope once for the request:
// the authenticated account when a valid session is present, otherwise the
// anonymous browser scope.
func resolveIdentity(w http.ResponseWriter, r *http.Request) services.Identity {
	if accountID := currentAccount(r); accountID != nil {
		return services.AccountIdentity(accountID.String())
	}
	return services.AnonymousIdentity(anonScopeID(w, r))
}

// setClientSessionCookie sets or clears the route guard's presence cookie.
func setClientSessionCookie(w http.ResponseWriter, active bool) {
	cookie := &http.Cookie{
		Name:     ClientSessionCookieName,
		Value:    "true",
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	}
	if !active {
		cookie.Value = ""
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
