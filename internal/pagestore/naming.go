package pagestore

import (
	"net/url"
	"regexp"
	"strings"
)

var numericSegment = regexp.MustCompile(`^\d+$`)

// DeriveURLPattern builds an anchored regex from a concrete URL by replacing
// purely numeric path segments with a wildcard. A POM created from /items/42
// will then match /items/99 on a later visit.
func DeriveURLPattern(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "^" + regexp.QuoteMeta(rawURL) + "$"
	}

	segments := strings.Split(u.EscapedPath(), "/")
	for i, seg := range segments {
		if numericSegment.MatchString(seg) {
			segments[i] = `\d+`
		} else {
			segments[i] = regexp.QuoteMeta(seg)
		}
	}

	prefix := ""
	if u.Scheme != "" {
		prefix = regexp.QuoteMeta(u.Scheme + "://" + u.Host)
	}
	return "^" + prefix + strings.Join(segments, "/") + "$"
}

// DerivePageName produces the page-object class name: PascalCase from the
// document title when present, otherwise from the last meaningful URL path
// segment, always suffixed with "Page".
func DerivePageName(rawURL, title string) string {
	if name := pascalCase(title); name != "" {
		return name + "Page"
	}

	if u, err := url.Parse(rawURL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := len(segments) - 1; i >= 0; i-- {
			if numericSegment.MatchString(segments[i]) {
				continue // /items/42 names itself after "items", not "42"
			}
			if name := pascalCase(segments[i]); name != "" {
				return name + "Page"
			}
		}
	}
	return "HomePage"
}

// pascalCase reduces arbitrary text to a PascalCase ASCII identifier.
func pascalCase(text string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range strings.TrimSpace(text) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			if upperNext && r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			upperNext = false
		case r >= '0' && r <= '9':
			if b.Len() > 0 {
				b.WriteRune(r)
			}
			upperNext = true
		default:
			upperNext = true
		}
		if b.Len() >= 40 {
			break
		}
	}
	return b.String()
}
