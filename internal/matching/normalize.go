package matching

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a product URL to its link identity: query string
// and fragment dropped, trailing slashes trimmed, scheme and host
// lowercased. The same page scraped twice must normalize to the same
// string or duplicate products appear.
func NormalizeURL(raw string) string {
	if raw == "" {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		base := strings.SplitN(raw, "?", 2)[0]
		base = strings.SplitN(base, "#", 2)[0]
		return strings.TrimRight(base, "/")
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	return parsed.String()
}
