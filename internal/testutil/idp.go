// Package testutil provides a mock identity provider for tests: discovery,
// JWKS, and token endpoints backed by a fresh RSA key per test.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"

	"authkit/internal/provider"
)

// ClientID is the OAuth2 client key the mock provider issues tokens for.
const ClientID = "test-client-id"

// KeyID is the kid the mock provider publishes and signs with.
const KeyID = "test-key-1"

// IdP is a mock identity provider served over httptest.
type IdP struct {
	Server *httptest.Server
	Key    *rsa.PrivateKey

	// DiscoveryHits and JWKSHits count endpoint fetches, for cache
	// idempotence assertions.
	DiscoveryHits atomic.Int32
	JWKSHits      atomic.Int32

	// LastTokenForm is the form of the most recent token-endpoint request.
	LastTokenForm url.Values

	// LastUserInfoAuth is the Authorization header of the most recent
	// userinfo request.
	LastUserInfoAuth string
}

// NewIdP starts a mock provider. The server is closed via t.Cleanup.
func NewIdP(t *testing.T) *IdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}

	idp := &IdP{Key: key}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		idp.DiscoveryHits.Add(1)
		doc := map[string]any{
			"issuer":                 idp.Server.URL,
			"authorization_endpoint": idp.Server.URL + "/oauth2/authorize",
			"token_endpoint":         idp.Server.URL + "/oauth2/access_token",
			"end_session_endpoint":   idp.Server.URL + "/logout",
			"userinfo_endpoint":      idp.Server.URL + "/user_info",
			"jwks_uri":               idp.Server.URL + "/keys",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})

	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, _ *http.Request) {
		idp.JWKSHits.Add(1)
		jwks := jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{
					Key:       &key.PublicKey,
					KeyID:     KeyID,
					Algorithm: string(jose.RS256),
					Use:       "sig",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	})

	mux.HandleFunc("POST /oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		idp.LastTokenForm = r.PostForm

		accessToken := idp.SignToken(t, nil)
		resp := map[string]any{
			"access_token": accessToken,
			"token_type":   "JWT",
			"expires_in":   3600,
			"id_token":     accessToken,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("GET /user_info", func(w http.ResponseWriter, r *http.Request) {
		idp.LastUserInfoAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"preferred_username": "jsmith",
			"email":              "jsmith@example.com",
			"locale":             "en_US",
		})
	})

	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Server.Close)
	return idp
}

// Config returns a provider configuration pointing at the mock server.
func (i *IdP) Config() provider.Config {
	return provider.Config{
		Name:      "test",
		URLRoot:   i.Server.URL,
		ClientKey: ClientID,
	}.WithDefaults()
}

// DefaultClaims returns a claim set that passes verification against the
// mock provider.
func (i *IdP) DefaultClaims() map[string]any {
	now := time.Now()
	return map[string]any{
		"iss":                i.Server.URL,
		"aud":                ClientID,
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
		"preferred_username": "jsmith",
		"email":              "jsmith@example.com",
		"name":               "J. Smith",
		"given_name":         "Jane",
		"family_name":        "Smith",
		"administrator":      false,
	}
}

// SignToken signs a JWT with the provider's key. overrides are merged onto
// DefaultClaims; a nil value removes the claim.
func (i *IdP) SignToken(t *testing.T, overrides map[string]any) string {
	t.Helper()

	claims := i.DefaultClaims()
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	signerKey := jose.SigningKey{Algorithm: jose.RS256, Key: i.Key}
	opts := (&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", KeyID)
	signer, err := jose.NewSigner(signerKey, opts)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	raw, err := josejwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// SignHMAC signs a JWT with the given symmetric secret.
func SignHMAC(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()

	signerKey := jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)}
	signer, err := jose.NewSigner(signerKey, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		t.Fatalf("create HMAC signer: %v", err)
	}

	raw, err := josejwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		t.Fatalf("sign HMAC token: %v", err)
	}
	return raw
}
