// Package urlutil provides URL canonicalization and article-link
// classification. Canonical URLs are the deduplication key for the
// whole pipeline, so the transformation here must be deterministic
// and idempotent.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// trackingParams lists query parameters stripped during canonicalization.
// These are advertising and analytics trackers that do not affect page
// content.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"_ga":          {},
	"ref":          {},
	"source":       {},
}

var errEmptyInput = errors.New("canonicalize url: empty input")

// Canonicalize applies deterministic transformations to a raw URL so that
// equivalent URLs produce identical strings: lowercased scheme and host,
// leading www. removed, tracking parameters stripped, remaining query
// parameters sorted by key then value, fragment dropped, and trailing
// slashes removed from non-root paths. Canonicalize(Canonicalize(u))
// equals Canonicalize(u).
func Canonicalize(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("canonicalize url: %w", err)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.RawQuery = buildCleanQuery(parsed.Query())
	parsed.Path = canonicalPath(parsed.Path)
	parsed.RawPath = ""

	return parsed.String(), nil
}

// buildCleanQuery strips tracking parameters and re-encodes the remaining
// ones sorted by key, then by value within each key. Returns an empty
// string when nothing survives the filter.
func buildCleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, isTracking := trackingParams[strings.ToLower(key)]; !isTracking {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		vals := append([]string(nil), values[key]...)
		sort.Strings(vals)

		for _, val := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}

// canonicalPath removes trailing slashes while preserving the root "/".
// An empty path becomes "/" so hosts without a path are stable.
func canonicalPath(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}

	return trimmed
}
