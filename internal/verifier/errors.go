package verifier

import "errors"

// Verification errors, in the order the checks run. Callers should treat all
// of them as an authentication failure and must not show the detailed message
// to end users.
var (
	// ErrMalformedToken indicates the token string could not be parsed.
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnknownSigningKey indicates no verification key matched the token's
	// algorithm and key ID.
	ErrUnknownSigningKey = errors.New("unknown signing key")

	// ErrInvalidSignature indicates the signature did not verify.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrInvalidIssuer indicates the iss claim did not match the expected issuer.
	ErrInvalidIssuer = errors.New("invalid token issuer")

	// ErrInvalidAudience indicates the aud/azp claims did not authorize this client.
	ErrInvalidAudience = errors.New("invalid token audience")

	// ErrTokenExpired indicates the exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenNotYetValid indicates the nbf claim is in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrTokenIssuedTooLongAgo indicates the iat claim exceeds the configured
	// maximum token age.
	ErrTokenIssuedTooLongAgo = errors.New("token issued too long ago")
)
