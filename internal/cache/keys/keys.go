package keys

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Dataset returns the cache key for the body served at rawURL under the
// logical dataset name, e.g. "dataset:parking-toronto:u=1f3a...".
func Dataset(name, rawURL string) string {
	norm := normalizeURL(rawURL)
	sum := xxhash.Sum64String(norm)
	return fmt.Sprintf("dataset:%s:u=%016x", sanitizeName(strings.TrimSpace(name)), sum)
}

// normalizeURL lowercases scheme and host, drops the fragment and sorts the
// query so equivalent URLs share a key. Unparseable input is only trimmed.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	return u.String()
}

func sanitizeName(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = unicode.ToLower(r)
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
