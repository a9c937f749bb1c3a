package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authkit/internal/backend"
	"authkit/internal/provider"
)

func testBackend() *backend.OAuth2Backend {
	cfg := provider.Config{
		Name:              "lms",
		URLRoot:           "https://example.com",
		ClientKey:         "my-client",
		LogoutRedirectURL: "https://app.example.com/",
	}
	return backend.NewOAuth2Backend(cfg, nil, nil, nil, nil)
}

func TestLogoutRedirect(t *testing.T) {
	ended := false
	h := NewLogoutRedirectHandler(
		SessionEnderFunc(func(http.ResponseWriter, *http.Request) error {
			ended = true
			return nil
		}),
		testBackend(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	if !ended {
		t.Error("session was not ended")
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	want := "https://example.com/logout?client_id=my-client&redirect_url=https://app.example.com/"
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
	if rec.Header().Get("X-Frame-Options") != "" {
		t.Error("logout view must stay frameable for provider-initiated sign-out")
	}
}

func TestLogoutNoRedirect(t *testing.T) {
	h := NewLogoutRedirectHandler(nil, testBackend(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logout?no_redirect=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if rec.Header().Get("Location") != "" {
		t.Error("no_redirect must suppress the redirect")
	}
}

func TestLogoutSessionEndFailureStillRedirects(t *testing.T) {
	h := NewLogoutRedirectHandler(
		SessionEnderFunc(func(http.ResponseWriter, *http.Request) error {
			return errors.New("session backend down")
		}),
		testBackend(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 despite session failure", rec.Code)
	}
}

func TestLoginRedirect(t *testing.T) {
	h := &LoginRedirectHandler{
		Backend:     testBackend(),
		RedirectURL: "https://app.example.com/complete",
		NewState:    func() string { return "fixed-state" },
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://example.com/oauth2/authorize?") {
		t.Errorf("Location = %q", loc)
	}
	if !strings.Contains(loc, "state=fixed-state") {
		t.Errorf("Location %q missing state", loc)
	}

	cookies := rec.Result().Cookies()
	var state *http.Cookie
	for _, c := range cookies {
		if c.Name == StateCookieName {
			state = c
		}
	}
	if state == nil {
		t.Fatal("state cookie not set")
	}
	if state.Value != "fixed-state" || !state.HttpOnly || !state.Secure {
		t.Errorf("state cookie = %+v", state)
	}
}

func TestLoginRateLimit(t *testing.T) {
	limited := LoginRateLimitMiddleware(LoginRateLimitConfig{AttemptsPerMinute: 2})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	request := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	// The burst allows the configured attempts, then throttles.
	if got := request("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("first attempt = %d", got)
	}
	if got := request("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("second attempt = %d", got)
	}
	if got := request("10.0.0.1:1234"); got != http.StatusTooManyRequests {
		t.Fatalf("third attempt = %d, want 429", got)
	}

	// Limiting is per client address.
	if got := request("10.0.0.2:1234"); got != http.StatusOK {
		t.Errorf("other client = %d, want 200", got)
	}
}
