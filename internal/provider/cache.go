package provider

import (
	"context"
	"net/http"
	"sync"
	"time"

	"authkit/internal/observability"
)

// MetadataCache is a time-bounded cache of provider discovery documents and
// key sets, keyed by provider name. Entries are replaced wholesale on expiry;
// a failed fetch caches nothing. Concurrent misses may each fetch (there is
// no single-flight), but every caller observes a fully-replaced entry.
type MetadataCache struct {
	client *http.Client
	now    func() time.Time
	logger observability.Logger

	mu        sync.RWMutex
	discovery map[string]discoveryEntry
	keysets   map[string]keysetEntry
}

type discoveryEntry struct {
	doc     *Document
	expires time.Time
}

type keysetEntry struct {
	keys    KeySet
	expires time.Time
}

// CacheOption configures a MetadataCache.
type CacheOption func(*MetadataCache)

// WithHTTPClient sets the HTTP client used for provider fetches. Timeouts are
// the client's responsibility; the cache performs no retries.
func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *MetadataCache) { c.client = client }
}

// WithClock sets the time source, for deterministic TTL tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *MetadataCache) { c.now = now }
}

// WithLogger sets the cache's logger.
func WithLogger(logger observability.Logger) CacheOption {
	return func(c *MetadataCache) { c.logger = logger }
}

// NewMetadataCache creates an empty metadata cache.
func NewMetadataCache(opts ...CacheOption) *MetadataCache {
	c := &MetadataCache{
		client:    http.DefaultClient,
		now:       time.Now,
		logger:    observability.Nop(),
		discovery: make(map[string]discoveryEntry),
		keysets:   make(map[string]keysetEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discovery returns the provider's discovery document, fetching it when the
// cache has no unexpired entry. An unexpired entry is returned without any
// network I/O.
func (c *MetadataCache) Discovery(ctx context.Context, cfg Config) (*Document, error) {
	cfg = cfg.WithDefaults()

	c.mu.RLock()
	entry, ok := c.discovery[cfg.Name]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expires) {
		return entry.doc, nil
	}

	doc, err := fetchDiscovery(ctx, c.client, cfg.DiscoveryURL())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.discovery[cfg.Name] = discoveryEntry{doc: doc, expires: c.now().Add(cfg.DiscoveryTTL)}
	c.mu.Unlock()

	c.logger.Debug("discovery document cached", "provider", cfg.Name, "ttl", cfg.DiscoveryTTL)
	return doc, nil
}

// KeySet returns the provider's verification keys, fetching the JWKS when the
// cache has no unexpired entry. The configured symmetric key, when present,
// is appended to every returned set and is never stored in the cache.
func (c *MetadataCache) KeySet(ctx context.Context, cfg Config) (KeySet, error) {
	cfg = cfg.WithDefaults()

	c.mu.RLock()
	entry, ok := c.keysets[cfg.Name]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expires) {
		return entry.keys.withSymmetric(cfg.SigningSecret), nil
	}

	jwksURL := cfg.JWKSEndpoint
	if jwksURL == "" {
		doc, err := c.Discovery(ctx, cfg)
		if err != nil {
			return KeySet{}, err
		}
		jwksURL = doc.JWKSURI
	}

	keys, err := fetchKeySet(ctx, c.client, jwksURL)
	if err != nil {
		return KeySet{}, err
	}

	c.mu.Lock()
	c.keysets[cfg.Name] = keysetEntry{keys: keys, expires: c.now().Add(cfg.KeySetTTL)}
	c.mu.Unlock()

	c.logger.Debug("key set cached", "provider", cfg.Name, "keys", keys.Len(), "ttl", cfg.KeySetTTL)
	return keys.withSymmetric(cfg.SigningSecret), nil
}

// Issuer returns the expected token issuer for the provider: the configured
// override when present, otherwise the issuer advertised by discovery.
func (c *MetadataCache) Issuer(ctx context.Context, cfg Config) (string, error) {
	if cfg.Issuer != "" {
		return cfg.Issuer, nil
	}
	doc, err := c.Discovery(ctx, cfg)
	if err != nil {
		return "", err
	}
	return doc.Issuer, nil
}
