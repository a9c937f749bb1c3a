// Package verifier validates bearer tokens against a provider's signing keys
// and the standard OIDC identity claims.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authkit/internal/provider"
)

// Metadata supplies provider signing keys and the expected issuer. Implemented
// by *provider.MetadataCache.
type Metadata interface {
	KeySet(ctx context.Context, cfg provider.Config) (provider.KeySet, error)
	Issuer(ctx context.Context, cfg provider.Config) (string, error)
}

// Verifier validates token signatures and claims. Checks run in a fixed
// order and fail fast on the first violation, so a given bad token always
// produces the same error.
type Verifier struct {
	meta Metadata
	now  func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock sets the time source, for deterministic expiry tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New creates a Verifier backed by the given metadata source.
func New(meta Metadata, opts ...Option) *Verifier {
	v := &Verifier{meta: meta, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses tokenString, verifies its signature against the provider's
// key set, and checks issuer, audience, expiry, not-before, and issued-at
// claims, in that order. The returned claims are guaranteed to have passed
// every check.
func (v *Verifier) Verify(ctx context.Context, tokenString string, cfg provider.Config) (Claims, error) {
	cfg = cfg.WithDefaults()

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.Parse(tokenString, v.keyFunc(ctx, cfg))
	if err != nil {
		return nil, mapParseError(err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrMalformedToken)
	}
	claims := Claims(mapClaims)

	// UTC, second precision.
	now := v.now().UTC().Unix()

	expectedIssuer, err := v.meta.Issuer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if claims.String("iss") != expectedIssuer {
		return nil, ErrInvalidIssuer
	}

	if err := checkAudience(claims, cfg.ClientKey); err != nil {
		return nil, err
	}

	exp, ok := claims.unix("exp")
	if !ok || now > exp {
		return nil, ErrTokenExpired
	}

	if nbf, ok := claims.unix("nbf"); ok && now < nbf {
		return nil, ErrTokenNotYetValid
	}

	iat, ok := claims.unix("iat")
	if !ok || now > iat+int64(cfg.MaxTokenAge.Seconds()) {
		return nil, ErrTokenIssuedTooLongAgo
	}

	return claims, nil
}

// keyFunc resolves the verification key for a parsed token header. Symmetric
// algorithms resolve to the configured signing secret without any network
// I/O; asymmetric algorithms resolve the kid against the cached key set.
func (v *Verifier) keyFunc(ctx context.Context, cfg provider.Config) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			if cfg.SigningSecret == "" {
				return nil, ErrUnknownSigningKey
			}
			return []byte(cfg.SigningSecret), nil
		}

		keys, err := v.meta.KeySet(ctx, cfg)
		if err != nil {
			return nil, err
		}

		kid, _ := token.Header["kid"].(string)
		key, found := keys.Key(kid)
		if !found {
			return nil, fmt.Errorf("%w: kid %q", ErrUnknownSigningKey, kid)
		}
		return key.Key, nil
	}
}

// checkAudience enforces the aud/azp rules: the client key must be among the
// audiences, and a multi-audience token must carry an azp claim naming this
// client. The azp rule guards against audience-confusion when a token is
// valid for several clients.
func checkAudience(claims Claims, clientKey string) error {
	audiences := claims.Audience()

	found := false
	for _, aud := range audiences {
		if aud == clientKey {
			found = true
			break
		}
	}
	if !found {
		return ErrInvalidAudience
	}

	if len(audiences) > 1 && !claims.Has("azp") {
		return ErrInvalidAudience
	}
	if claims.Has("azp") && claims.String("azp") != clientKey {
		return ErrInvalidAudience
	}

	return nil
}

// mapParseError translates jwt parse failures into this package's taxonomy,
// passing provider availability and key resolution errors through unchanged.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, provider.ErrProviderUnavailable):
		return err
	case errors.Is(err, ErrUnknownSigningKey):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}
