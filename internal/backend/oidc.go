package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"authkit/internal/identity"
	"authkit/internal/provider"
	"authkit/internal/verifier"
)

// OIDCBackend is the OpenID Connect backend for providers that return an
// id_token from the code exchange. Discovery, key fetching, and ID-token
// verification are delegated to go-oidc.
//
// Deprecated: use OAuth2Backend, which verifies JWT-typed access tokens and
// supports the full reconciliation pipeline. OIDCBackend is kept for hosts
// still on the id_token flow.
type OIDCBackend struct {
	cfg          provider.Config
	oidcProvider *gooidc.Provider
	idVerifier   *gooidc.IDTokenVerifier
	client       *http.Client
}

// NewOIDCBackend performs OIDC discovery on the provider's public root and
// builds an ID-token verifier for the configured client.
func NewOIDCBackend(ctx context.Context, cfg provider.Config, client *http.Client) (*OIDCBackend, error) {
	cfg = cfg.WithDefaults()
	if client == nil {
		client = http.DefaultClient
	}
	ctx = gooidc.ClientContext(ctx, client)

	oidcProv, err := gooidc.NewProvider(ctx, cfg.PublicRoot())
	if err != nil {
		return nil, fmt.Errorf("%w: oidc discovery: %v", provider.ErrProviderUnavailable, err)
	}

	idVerifier := oidcProv.Verifier(&gooidc.Config{ClientID: cfg.ClientKey})

	return &OIDCBackend{
		cfg:          cfg,
		oidcProvider: oidcProv,
		idVerifier:   idVerifier,
		client:       client,
	}, nil
}

// Name identifies the backend to the host framework.
func (b *OIDCBackend) Name() string { return "oidc" }

// OAuth2Config builds the oauth2 client configuration using discovered
// endpoints. The openid scope is always requested.
func (b *OIDCBackend) OAuth2Config(redirectURL string) *oauth2.Config {
	scopes := append([]string{gooidc.ScopeOpenID}, b.cfg.Scopes...)
	return &oauth2.Config{
		ClientID:     b.cfg.ClientKey,
		ClientSecret: b.cfg.ClientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     b.oidcProvider.Endpoint(),
		Scopes:       scopes,
	}
}

// AuthCodeURL generates the provider redirect URL for the given state.
func (b *OIDCBackend) AuthCodeURL(state, redirectURL string) string {
	return b.OAuth2Config(redirectURL).AuthCodeURL(state)
}

// LogoutURL returns the provider's logout page.
func (b *OIDCBackend) LogoutURL() string {
	if b.cfg.EndSessionEndpoint != "" {
		return b.cfg.EndSessionEndpoint
	}
	return b.cfg.PublicRoot() + "/logout"
}

// Exchange swaps an authorization code for tokens, verifies the returned
// id_token, and maps its claims onto user details.
func (b *OIDCBackend) Exchange(ctx context.Context, code, redirectURL string) (identity.UserDetails, verifier.Claims, error) {
	ctx = gooidc.ClientContext(ctx, b.client)

	token, err := b.OAuth2Config(redirectURL).Exchange(ctx, code)
	if err != nil {
		return identity.UserDetails{}, nil, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return identity.UserDetails{}, nil, fmt.Errorf("no id_token in token response")
	}

	idToken, err := b.idVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.UserDetails{}, nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims verifier.Claims
	if err := idToken.Claims(&claims); err != nil {
		return identity.UserDetails{}, nil, fmt.Errorf("extract claims: %w", err)
	}

	return identity.FromClaims(claims), claims, nil
}

// UserClaims fetches claims from the userinfo endpoint, optionally filtered
// to the requested claim names. tokenType defaults to Bearer.
func (b *OIDCBackend) UserClaims(ctx context.Context, accessToken string, names []string, tokenType string) (map[string]any, error) {
	if tokenType == "" {
		tokenType = "Bearer"
	}

	userInfoURL := b.cfg.UserInfoEndpoint
	if userInfoURL == "" {
		userInfoURL = b.cfg.Root() + "/user_info"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", tokenType+" "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch userinfo: %v", provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}

	if len(names) == 0 {
		return data, nil
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	filtered := make(map[string]any, len(wanted))
	for k, v := range data {
		if _, ok := wanted[k]; ok {
			filtered[k] = v
		}
	}
	return filtered, nil
}
