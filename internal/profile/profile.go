// Package profile extracts LinkedIn profile URLs from free text and link
// lists.
package profile

import (
	"regexp"
	"strings"
)

// profileRe matches a LinkedIn member profile on any subdomain, with or
// without a scheme. Group 1 is the path kind (in|pub), group 2 the handle.
var profileRe = regexp.MustCompile(`(?i)(?:https?://)?(?:[a-z0-9-]+\.)*linkedin\.com/(in|pub)/([^\s/?#"'<>,;)\]]+)(/[^\s?#"'<>,;)\]]*)?`)

const trailingPunct = ".,;:!?)]}'\""

// ExtractURL returns the first LinkedIn profile URL found in text, normalized
// to an https scheme with trailing punctuation trimmed.
func ExtractURL(text string) (string, bool) {
	m := profileRe.FindStringSubmatchIndex(text)
	if m == nil {
		return "", false
	}
	raw := strings.TrimRight(text[m[0]:m[1]], trailingPunct+"/")

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "https://"):
		raw = "https://" + raw[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		raw = "https://" + raw[len("http://"):]
	default:
		raw = "https://" + raw
	}
	return raw, true
}

// FromLinks returns the first profile URL found in links, in order.
func FromLinks(links []string) (string, bool) {
	for _, l := range links {
		if u, ok := ExtractURL(l); ok {
			return u, true
		}
	}
	return "", false
}

// Find looks in structured links first, then in each free-text field.
func Find(links []string, texts ...string) (string, bool) {
	if u, ok := FromLinks(links); ok {
		return u, true
	}
	for _, t := range texts {
		if u, ok := ExtractURL(t); ok {
			return u, true
		}
	}
	return "", false
}

var usernameRe = regexp.MustCompile(`(?i)linkedin\.com/(?:in|pub)/([^/?#\s]+)`)

// Username returns the lower-cased profile handle of url, or "" when url is
// not a LinkedIn profile.
func Username(url string) string {
	m := usernameRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return strings.ToLower(strings.TrimRight(m[1], trailingPunct))
}
