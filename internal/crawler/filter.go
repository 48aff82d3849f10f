package crawler

import (
	"net/url"
	"strings"
)

// DefaultStripParams are tracking and session parameters removed by Normalize
var DefaultStripParams = []string{"utm_source", "session_id"}

// LinkClass is the result of classifying a discovered link
type LinkClass int

const (
	LinkUnknown LinkClass = iota
	LinkInternal
	LinkExternal
)

func (c LinkClass) String() string {
	switch c {
	case LinkInternal:
		return "internal"
	case LinkExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Normalize canonicalizes rawURL for identity comparison: the fragment is
// dropped and query parameters named in strip are removed, keeping the
// remaining parameters in their original order. On parse failure the input
// is returned unchanged.
func Normalize(rawURL string, strip []string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	if parsed.RawQuery != "" {
		parsed.RawQuery = filterQuery(parsed.RawQuery, strip)
	}
	if parsed.RawQuery == "" {
		parsed.ForceQuery = false
	}

	return parsed.String()
}

// filterQuery drops the parameters named in strip from a raw query string
func filterQuery(rawQuery string, strip []string) string {
	kept := make([]string, 0)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, _, _ := strings.Cut(part, "=")
		if unescaped, err := url.QueryUnescape(key); err == nil {
			key = unescaped
		}
		if contains(strip, key) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "&")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Classify resolves candidate against base and reports whether it lives on
// the same host. Hosts compare case-insensitively; scheme and port are
// ignored. A link that resolves without a host, such as mailto: or
// javascript:, counts as internal.
func Classify(base, candidate string) LinkClass {
	baseURL, err := url.Parse(base)
	if err != nil {
		return LinkUnknown
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return LinkUnknown
	}

	resolved := baseURL.ResolveReference(ref)
	if resolved.Host == "" {
		return LinkInternal
	}
	if strings.EqualFold(resolved.Hostname(), baseURL.Hostname()) {
		return LinkInternal
	}
	return LinkExternal
}

// Resolve turns href into an absolute URL relative to base
func Resolve(base, href string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// WithinBoundary reports whether rawURL lies under the seed by plain string
// prefix. This is stricter than Classify, which only compares hosts.
func WithinBoundary(seed, rawURL string) bool {
	return strings.HasPrefix(rawURL, seed)
}
