package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-jose/go-jose/v4"
)

// KeySet is the set of keys accepted for token signature verification:
// the provider's published JWKS plus, when configured, one symmetric key
// sourced from static configuration.
type KeySet struct {
	Keys []jose.JSONWebKey
}

// Key returns the key with the given key ID. An empty kid matches the first
// key without a key ID, which some providers publish for single-key sets.
func (ks KeySet) Key(kid string) (jose.JSONWebKey, bool) {
	for _, k := range ks.Keys {
		if k.KeyID == kid {
			return k, true
		}
	}
	return jose.JSONWebKey{}, false
}

// Len returns the number of keys in the set.
func (ks KeySet) Len() int { return len(ks.Keys) }

// withSymmetric returns a copy of the key set with the configured symmetric
// secret appended. The symmetric key never enters the cache; it is appended
// on every read.
func (ks KeySet) withSymmetric(secret string) KeySet {
	if secret == "" {
		return ks
	}
	keys := make([]jose.JSONWebKey, 0, len(ks.Keys)+1)
	keys = append(keys, ks.Keys...)
	keys = append(keys, jose.JSONWebKey{
		Key:       []byte(secret),
		Algorithm: string(jose.HS256),
		Use:       "sig",
	})
	return KeySet{Keys: keys}
}

// fetchKeySet retrieves and parses the JWKS at url.
func fetchKeySet(ctx context.Context, client *http.Client, url string) (KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return KeySet{}, fmt.Errorf("%w: create request: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return KeySet{}, fmt.Errorf("%w: fetch JWKS: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return KeySet{}, fmt.Errorf("%w: JWKS endpoint returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return KeySet{}, fmt.Errorf("%w: decode JWKS: %v", ErrProviderUnavailable, err)
	}

	return KeySet{Keys: jwks.Keys}, nil
}
