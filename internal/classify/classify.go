// Package classify maps page URLs to the coarse source label and domain key
// attached to every capture.
package classify

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// UnknownDomain is the domain key used when a page URL cannot be parsed.
const UnknownDomain = "unknown"

// DefaultSource is the source label for URLs that match no known site.
const DefaultSource = "web"

// sourceRule maps a set of URL substrings to a source label.
type sourceRule struct {
	label    string
	patterns []string
}

// sourceRules is checked in order; the first rule with a matching pattern wins.
var sourceRules = []sourceRule{
	{label: "reddit", patterns: []string{"reddit.com"}},
	{label: "facebook", patterns: []string{"facebook.com"}},
	{label: "mastodon", patterns: []string{"mastodon"}},
	{label: "twitter", patterns: []string{"x.com", "twitter.com"}},
	{label: "youtube", patterns: []string{"youtube.com", "youtu.be"}},
	{label: "linkedin", patterns: []string{"linkedin.com"}},
}

// Source returns the source label for a page URL.
// Matching is a case-insensitive substring check; empty URLs map to "web".
func Source(pageURL string) string {
	if pageURL == "" {
		return DefaultSource
	}
	lower := strings.ToLower(pageURL)
	for _, rule := range sourceRules {
		for _, p := range rule.patterns {
			if strings.Contains(lower, p) {
				return rule.label
			}
		}
	}
	return DefaultSource
}

// hostProfile converts internationalized hosts the way browsers serialize
// URL hostnames: non-transitional UTS #46 mapping, underscores allowed.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
	idna.CheckHyphens(false),
)

// Domain returns the hostname of an absolute page URL in the form a browser
// reports it: lowercased, with internationalized names in Punycode
// (bücher.de becomes xn--bcher-kva.de). Anything that does not parse as a
// URL with a scheme and host yields "unknown".
func Domain(pageURL string) string {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Scheme == "" {
		return UnknownDomain
	}
	host := u.Hostname()
	if host == "" {
		return UnknownDomain
	}
	host = strings.ToLower(host)
	if isASCII(host) {
		return host
	}
	if ascii, err := hostProfile.ToASCII(host); err == nil && ascii != "" {
		return ascii
	}
	return host
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
