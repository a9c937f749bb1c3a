// Package backend exposes the OAuth2 SSO backend consumed by the host
// framework: endpoint-URL derivation, the JWT-typed token exchange, token
// verification, claims mapping, and the reconciliation pipeline hand-off.
package backend

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"authkit/internal/identity"
	"authkit/internal/observability"
	"authkit/internal/pipeline"
	"authkit/internal/provider"
	"authkit/internal/store"
	"authkit/internal/verifier"
)

// tokenTypeJWT forces the token endpoint to mint a signed JWT access token
// instead of an opaque bearer token.
var tokenTypeJWT = oauth2.SetAuthURLParam("token_type", "jwt")

// AuthResult is the outcome of a completed authentication attempt.
type AuthResult struct {
	// User is the resolved local user, if the pipeline resolved one.
	User *store.User

	// IsNew reports whether the attempt created a new local user.
	IsNew bool

	// Details is the identity mapped from the verified token.
	Details identity.UserDetails

	// Claims is the full verified claim set.
	Claims verifier.Claims

	// Token is the raw token response from the code exchange.
	Token *oauth2.Token
}

// CompletionObserver is notified after every successful authentication.
// Explicit replacement for broadcast signal dispatch: observers are
// registered on the backend during setup.
type CompletionObserver interface {
	AuthCompleted(ctx context.Context, result *AuthResult)
}

// OAuth2Backend is the SSO backend facade. Stateless per call except for the
// shared metadata cache.
type OAuth2Backend struct {
	cfg       provider.Config
	meta      *provider.MetadataCache
	verify    *verifier.Verifier
	runner    *pipeline.Runner
	logger    observability.Logger
	observers []CompletionObserver
}

// NewOAuth2Backend creates the backend facade. runner may be nil when the
// host drives the pipeline itself.
func NewOAuth2Backend(
	cfg provider.Config,
	meta *provider.MetadataCache,
	verify *verifier.Verifier,
	runner *pipeline.Runner,
	logger observability.Logger,
) *OAuth2Backend {
	if logger == nil {
		logger = observability.Nop()
	}
	return &OAuth2Backend{
		cfg:    cfg.WithDefaults(),
		meta:   meta,
		verify: verify,
		runner: runner,
		logger: logger.WithProvider(cfg.Name),
	}
}

// Name identifies the backend to the host framework.
func (b *OAuth2Backend) Name() string { return "jwt-oauth2" }

// Config returns the provider configuration the backend was built with.
func (b *OAuth2Backend) Config() provider.Config { return b.cfg }

// RegisterCompletionObserver adds an observer invoked after successful
// authentication. Not safe to call concurrently with CompleteAuth; register
// during setup.
func (b *OAuth2Backend) RegisterCompletionObserver(obs CompletionObserver) {
	b.observers = append(b.observers, obs)
}

// AuthorizationURL returns the provider's authorization endpoint. Browser
// facing, so derived from the public URL root.
func (b *OAuth2Backend) AuthorizationURL() string {
	if b.cfg.AuthorizationEndpoint != "" {
		return b.cfg.AuthorizationEndpoint
	}
	return b.cfg.PublicRoot() + "/oauth2/authorize"
}

// AccessTokenURL returns the provider's token endpoint. Called server to
// server, so derived from the internal URL root.
func (b *OAuth2Backend) AccessTokenURL() string {
	if b.cfg.TokenEndpoint != "" {
		return b.cfg.TokenEndpoint
	}
	return b.cfg.Root() + "/oauth2/access_token"
}

// UserInfoURL returns the provider's userinfo endpoint.
func (b *OAuth2Backend) UserInfoURL() string {
	if b.cfg.UserInfoEndpoint != "" {
		return b.cfg.UserInfoEndpoint
	}
	return b.cfg.Root() + "/user_info"
}

// EndSessionURL returns the provider's logout page.
func (b *OAuth2Backend) EndSessionURL() string {
	if b.cfg.EndSessionEndpoint != "" {
		return b.cfg.EndSessionEndpoint
	}
	return b.cfg.PublicRoot() + "/logout"
}

// LogoutURL returns the URL to send a browser to for single sign-out. When a
// post-logout redirect is configured, the client key and redirect target ride
// along as query parameters so the provider can bounce the user back.
func (b *OAuth2Backend) LogoutURL() string {
	endSession := b.EndSessionURL()
	if b.cfg.LogoutRedirectURL == "" {
		return endSession
	}
	return fmt.Sprintf("%s?client_id=%s&redirect_url=%s", endSession, b.cfg.ClientKey, b.cfg.LogoutRedirectURL)
}

// EndpointsFromDiscovery returns OAuth2 endpoints taken from the provider's
// discovery document, for hosts that prefer discovery over URL derivation.
func (b *OAuth2Backend) EndpointsFromDiscovery(ctx context.Context) (oauth2.Endpoint, error) {
	doc, err := b.meta.Discovery(ctx, b.cfg)
	if err != nil {
		return oauth2.Endpoint{}, err
	}
	return oauth2.Endpoint{
		AuthURL:  doc.AuthorizationEndpoint,
		TokenURL: doc.TokenEndpoint,
	}, nil
}

// OAuth2Config builds the oauth2 client configuration for this provider.
func (b *OAuth2Backend) OAuth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     b.cfg.ClientKey,
		ClientSecret: b.cfg.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       b.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  b.AuthorizationURL(),
			TokenURL: b.AccessTokenURL(),
		},
	}
}

// AuthCodeURL generates the provider redirect URL for the given state.
func (b *OAuth2Backend) AuthCodeURL(state, redirectURL string) string {
	return b.OAuth2Config(redirectURL).AuthCodeURL(state)
}

// Exchange swaps an authorization code for a token, requesting a JWT-typed
// access token.
func (b *OAuth2Backend) Exchange(ctx context.Context, code, redirectURL string) (*oauth2.Token, error) {
	token, err := b.OAuth2Config(redirectURL).Exchange(ctx, code, tokenTypeJWT)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return token, nil
}

// UserData verifies the access token and maps its claims onto user details.
// Fails closed: any verification failure propagates to the caller.
func (b *OAuth2Backend) UserData(ctx context.Context, accessToken string) (identity.UserDetails, verifier.Claims, error) {
	claims, err := b.verify.Verify(ctx, accessToken, b.cfg)
	if err != nil {
		return identity.UserDetails{}, nil, err
	}
	return identity.FromClaims(claims), claims, nil
}

// CompleteAuth drives one full authentication attempt: code exchange, token
// verification, claims mapping, and the reconciliation pipeline. Observers
// run after everything succeeded.
func (b *OAuth2Backend) CompleteAuth(ctx context.Context, code, redirectURL string, sessionUser *store.User) (*AuthResult, error) {
	token, err := b.Exchange(ctx, code, redirectURL)
	if err != nil {
		return nil, err
	}

	details, claims, err := b.UserData(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{
		Details: details,
		Claims:  claims,
		Token:   token,
	}

	if b.runner != nil {
		pc := &pipeline.Context{Details: details, SessionUser: sessionUser}
		if err := b.runner.Run(ctx, pc); err != nil {
			return nil, err
		}
		result.User = pc.User
		if result.User == nil {
			result.User = pc.SessionUser
		}
		if pc.IsNew != nil {
			result.IsNew = *pc.IsNew
		}
	}

	b.logger.Info("authentication completed",
		"username", details.Username, "is_new", result.IsNew)

	for _, obs := range b.observers {
		obs.AuthCompleted(ctx, result)
	}

	return result, nil
}
