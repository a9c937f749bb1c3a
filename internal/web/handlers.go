// Package web provides the login and session-termination views shared by
// services behind one identity provider. Routing and session storage stay
// with the host; the handlers here only need a way to end a session and a
// backend to derive provider URLs from.
package web

import (
	"net/http"

	"github.com/google/uuid"

	"authkit/internal/backend"
	"authkit/internal/observability"
)

// StateCookieName carries the OAuth2 state between the login redirect and the
// host's callback handler.
const StateCookieName = "authkit_state"

// SessionEnder destroys the current session. Implemented by the host's
// session machinery.
type SessionEnder interface {
	EndSession(w http.ResponseWriter, r *http.Request) error
}

// SessionEnderFunc adapts a function to the SessionEnder interface.
type SessionEnderFunc func(w http.ResponseWriter, r *http.Request) error

func (f SessionEnderFunc) EndSession(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// LogoutRedirectHandler implements single sign-out: it ends the local session
// and redirects the browser to the provider's logout URL.
//
// With a `no_redirect` query argument the handler returns an empty 200
// instead of redirecting. The handler never sets X-Frame-Options, so the
// provider's logout page can load it in an iframe and trigger sign-out from
// its side.
type LogoutRedirectHandler struct {
	Sessions SessionEnder

	// URL returns the redirect target. Typically backend.LogoutURL.
	URL func() string

	Logger observability.Logger
}

// NewLogoutRedirectHandler builds a logout view redirecting to the backend's
// logout URL.
func NewLogoutRedirectHandler(sessions SessionEnder, b *backend.OAuth2Backend, logger observability.Logger) *LogoutRedirectHandler {
	return &LogoutRedirectHandler{
		Sessions: sessions,
		URL:      b.LogoutURL,
		Logger:   logger,
	}
}

func (h *LogoutRedirectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Sessions != nil {
		if err := h.Sessions.EndSession(w, r); err != nil {
			// Session teardown failure must not keep the user signed in at
			// the provider; log and continue to the redirect.
			h.logger().Error("ending session failed", "error", err)
		}
	}

	if r.URL.Query().Get("no_redirect") != "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	http.Redirect(w, r, h.URL(), http.StatusFound)
}

func (h *LogoutRedirectHandler) logger() observability.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return observability.Nop()
}

// LoginRedirectHandler starts the authorization-code flow: it generates a
// state value, stores it in a cookie for the host's callback to verify, and
// redirects to the provider's authorization endpoint.
type LoginRedirectHandler struct {
	Backend     *backend.OAuth2Backend
	RedirectURL string

	// NewState generates the state parameter. Defaults to a random UUID.
	NewState func() string

	// Secure marks the state cookie as HTTPS-only. On by default outside
	// development.
	Insecure bool
}

func (h *LoginRedirectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	newState := h.NewState
	if newState == nil {
		newState = uuid.NewString
	}
	state := newState()

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   !h.Insecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.Backend.AuthCodeURL(state, h.RedirectURL), http.StatusFound)
}
