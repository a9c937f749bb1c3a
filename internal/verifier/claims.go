package verifier

import (
	"encoding/json"
	"strconv"
)

// Claims is the claim set of a verified token. It is transient: created per
// authentication attempt and never persisted.
type Claims map[string]any

// String returns the named claim as a string. Numeric claims are formatted;
// absent or non-scalar claims return "".
func (c Claims) String(name string) string {
	switch v := c[name].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Bool returns the named claim as a bool, defaulting to false.
func (c Claims) Bool(name string) bool {
	v, _ := c[name].(bool)
	return v
}

// Has reports whether the named claim is present.
func (c Claims) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Audience returns the aud claim normalized to a list. A scalar audience
// becomes a single-element list; an absent audience returns nil.
func (c Claims) Audience() []string {
	switch v := c["aud"].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// unix returns the named claim as a Unix timestamp in seconds.
func (c Claims) unix(name string) (int64, bool) {
	switch v := c[name].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	default:
		return 0, false
	}
}
