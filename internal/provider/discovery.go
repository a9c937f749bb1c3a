package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrProviderUnavailable indicates the identity provider's metadata could not
// be fetched or parsed. Callers should fail the authentication attempt; no
// retry is performed here.
var ErrProviderUnavailable = errors.New("identity provider unavailable")

// Document is an OpenID Connect discovery document, reduced to the endpoints
// this package consumes.
type Document struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// fetchDiscovery retrieves and parses the discovery document at url.
func fetchDiscovery(ctx context.Context, client *http.Client, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch discovery document: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: discovery endpoint returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode discovery document: %v", ErrProviderUnavailable, err)
	}
	if doc.JWKSURI == "" {
		return nil, fmt.Errorf("%w: discovery document missing jwks_uri", ErrProviderUnavailable)
	}

	return &doc, nil
}
