// Package identity maps verified token claims onto a canonical user-detail
// record.
package identity

import (
	"strconv"
	"strings"
)

// UserDetails is the canonical mapped identity handed to the reconciliation
// pipeline. A zero string means the source claim was absent; mapping never
// fills a destination field from an empty or missing claim.
type UserDetails struct {
	Username       string `json:"username,omitempty"`
	Email          string `json:"email,omitempty"`
	FullName       string `json:"full_name,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Language       string `json:"language,omitempty"`
	UserTrackingID string `json:"user_tracking_id,omitempty"`
	IsStaff        bool   `json:"is_staff"`
	IsSuperuser    bool   `json:"is_superuser"`
}

// claimString returns the named claim as a string. Numeric claims (such as
// tracking identifiers) are formatted; absent claims return "".
func claimString(claims map[string]any, name string) string {
	switch v := claims[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// FromClaims maps a verified claim set onto UserDetails. Pure and total:
// missing fields are simply omitted.
func FromClaims(claims map[string]any) UserDetails {
	details := UserDetails{
		Username:       claimString(claims, "preferred_username"),
		Email:          claimString(claims, "email"),
		FullName:       claimString(claims, "name"),
		FirstName:      claimString(claims, "given_name"),
		LastName:       claimString(claims, "family_name"),
		UserTrackingID: claimString(claims, "user_tracking_id"),
	}

	if locale := claimString(claims, "locale"); locale != "" {
		details.Language = toLanguage(locale)
	}

	// The provider has a single administrator concept; it maps onto both
	// host privilege flags, deliberately kept in lockstep.
	admin, _ := claims["administrator"].(bool)
	details.IsStaff = admin
	details.IsSuperuser = admin

	return details
}

// toLanguage converts an OIDC locale name (en_US) to a language code (en-us).
func toLanguage(locale string) string {
	return strings.ToLower(strings.ReplaceAll(locale, "_", "-"))
}
