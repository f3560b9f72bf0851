// internal/linkedin/ref.go
package linkedin

import (
	"regexp"
	"strings"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
)

// Provider ids are opaque base64-like tokens, e.g. "ACoAABxu...". Vanity
// slugs are the human-readable /in/ path segment of a profile URL. The two
// are not interchangeable: the send API accepts only provider ids.
var (
	providerIDPattern = regexp.MustCompile(`^AC[0-9A-Za-z_-]{10,}$`)
	vanityPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9\-_.%]{1,99}$`)
)

// IsProviderID reports whether ref already has the opaque provider id shape.
func IsProviderID(ref string) bool {
	return providerIDPattern.MatchString(strings.TrimSpace(ref))
}

// Normalize folds a reference to its canonical dedup form: lower-cased,
// query string and trailing slash stripped. Every dedup and lookup goes
// through here so casing differences can never cause silent misses.
func Normalize(ref string) string {
	s := strings.ToLower(strings.TrimSpace(ref))
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "/")
}

// Vanity extracts the vanity slug from a reference, which may be a bare slug
// or a full profile URL. Returns ErrInvalidReference for empty or malformed
// input.
func Vanity(ref string) (string, error) {
	s := Normalize(ref)
	if s == "" {
		return "", appErrors.NewInvalidReference(ref)
	}

	if strings.Contains(s, "/") || strings.Contains(s, "linkedin.com") {
		i := strings.Index(s, "/in/")
		if i < 0 {
			return "", appErrors.NewInvalidReference(ref)
		}
		s = s[i+len("/in/"):]
		if j := strings.Index(s, "/"); j >= 0 {
			s = s[:j]
		}
	}

	if !vanityPattern.MatchString(s) {
		return "", appErrors.NewInvalidReference(ref)
	}
	return s, nil
}
