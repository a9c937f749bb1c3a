// Package provider holds per-provider configuration and the time-bounded
// cache of identity-provider metadata (discovery documents and signing keys).
package provider

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults for cache lifetimes and token age.
const (
	// DefaultDiscoveryTTL is how long a cached discovery document stays
	// valid. Provider configuration rarely changes, so this is long.
	DefaultDiscoveryTTL = 7 * 24 * time.Hour

	// DefaultKeySetTTL is how long a cached key set stays valid. Shorter
	// than the discovery TTL to bound staleness after key rotation.
	DefaultKeySetTTL = 24 * time.Hour

	// DefaultMaxTokenAge is the maximum accepted age of a token's iat claim.
	DefaultMaxTokenAge = 10 * time.Minute
)

// DefaultScopes are requested when a provider does not configure its own.
var DefaultScopes = []string{"profile", "email"}

// Config is the static, settings-derived configuration for one identity
// provider. It is immutable for the lifetime of the process; changes require
// an external configuration reload.
type Config struct {
	// Name identifies the provider. Used as the cache key.
	Name string `yaml:"name"`

	// URLRoot is the provider's base URL as reachable by this service.
	URLRoot string `yaml:"url_root"`

	// PublicURLRoot is the provider's base URL as reachable by browsers.
	// Falls back to URLRoot when empty.
	PublicURLRoot string `yaml:"public_url_root"`

	// ClientKey and ClientSecret are the OAuth2 client credentials.
	ClientKey    string `yaml:"client_key"`
	ClientSecret string `yaml:"client_secret"`

	// Issuer is the expected iss claim. When empty, the issuer from the
	// discovery document is used.
	Issuer string `yaml:"issuer"`

	// Explicit endpoint overrides. When set they take precedence over both
	// URL-root derivation and discovery.
	AuthorizationEndpoint string `yaml:"authorization_endpoint"`
	TokenEndpoint         string `yaml:"token_endpoint"`
	EndSessionEndpoint    string `yaml:"end_session_endpoint"`
	UserInfoEndpoint      string `yaml:"user_info_endpoint"`
	JWKSEndpoint          string `yaml:"jwks_endpoint"`

	// SigningSecret is an optional symmetric HMAC secret. When set it is
	// appended to every key set returned by the cache; it is never itself
	// cached because it is configuration-scoped, not provider-scoped.
	SigningSecret string `yaml:"signing_secret"`

	// Scopes requested during authorization. Defaults to DefaultScopes.
	Scopes []string `yaml:"scopes"`

	// LogoutRedirectURL is the optional post-logout redirect target. When
	// set, the logout URL carries client_id and redirect_url parameters.
	LogoutRedirectURL string `yaml:"logout_redirect_url"`

	// DiscoveryTTL and KeySetTTL bound how long cached provider metadata is
	// served without a refetch.
	DiscoveryTTL time.Duration `yaml:"discovery_ttl"`
	KeySetTTL    time.Duration `yaml:"keyset_ttl"`

	// MaxTokenAge is the maximum accepted distance between a token's iat
	// claim and the current time.
	MaxTokenAge time.Duration `yaml:"max_token_age"`

	// SyncEmailOnUsernameMismatch keeps the legacy permissive behavior of
	// syncing a provider email onto a local user even when the usernames
	// disagree. Off by default: a mismatch skips the sync.
	SyncEmailOnUsernameMismatch bool `yaml:"sync_email_on_username_mismatch"`

	// IgnoreSessionUserOnMismatch makes identity resolution ignore a
	// session-attached user whose username differs from the token's, falling
	// through to a store lookup instead of trusting the session.
	IgnoreSessionUserOnMismatch bool `yaml:"ignore_session_user_on_mismatch"`
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("provider name is required")
	}
	if c.URLRoot == "" {
		return fmt.Errorf("provider %q: url_root is required", c.Name)
	}
	if c.ClientKey == "" {
		return fmt.Errorf("provider %q: client_key is required", c.Name)
	}
	return nil
}

// WithDefaults returns a copy of the config with zero-valued fields replaced
// by defaults.
func (c Config) WithDefaults() Config {
	if c.DiscoveryTTL <= 0 {
		c.DiscoveryTTL = DefaultDiscoveryTTL
	}
	if c.KeySetTTL <= 0 {
		c.KeySetTTL = DefaultKeySetTTL
	}
	if c.MaxTokenAge <= 0 {
		c.MaxTokenAge = DefaultMaxTokenAge
	}
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), DefaultScopes...)
	}
	return c
}

// PublicRoot returns the browser-facing base URL.
func (c Config) PublicRoot() string {
	if c.PublicURLRoot != "" {
		return strings.TrimSuffix(c.PublicURLRoot, "/")
	}
	return strings.TrimSuffix(c.URLRoot, "/")
}

// Root returns the service-facing base URL.
func (c Config) Root() string {
	return strings.TrimSuffix(c.URLRoot, "/")
}

// DiscoveryURL returns the provider's well-known configuration endpoint.
func (c Config) DiscoveryURL() string {
	return c.PublicRoot() + "/.well-known/openid-configuration"
}
