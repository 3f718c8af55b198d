package browser

import (
	"net/url"
	"strings"
)

// NormalizeURL turns user-supplied navigation targets into absolute URLs.
// Bare hosts get an https:// scheme; anything with an explicit scheme is
// left alone so about:blank and file:// targets still work.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if strings.Contains(trimmed, "://") || strings.HasPrefix(trimmed, "about:") {
		return trimmed
	}
	return "https://" + trimmed
}

// ExtractDomain returns the registrable-ish host of a URL with any www.
// prefix stripped. Used to sanity-check where a navigation actually landed.
func ExtractDomain(raw string) string {
	u, err := url.Parse(NormalizeURL(raw))
	if err != nil || u.Host == "" {
		// Fall back to a crude split for unparsable input.
		s := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimPrefix(s, "www.")
	}
	host := u.Hostname()
	return strings.TrimPrefix(host, "www.")
}
