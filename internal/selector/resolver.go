// Package selector turns observed element attributes into a ranked selector
// strategy. It is pure: no browser handles, only the plain attribute and text
// records captured at extraction time plus a small document context for
// class-uniqueness checks.
package selector

import (
	"fmt"
	"regexp"
	"strings"
)

// testAttributes are explicit test hooks, checked in this order. They are
// immune to styling refactors and therefore outrank everything except a DOM id.
var testAttributes = []string{"data-testid", "data-test", "data-cy"}

// validIdentifier matches ids and class names that are safe to embed in a
// bare #id / .class selector without escaping.
var validIdentifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// maxTextSelectorLen caps how long visible text may be before it stops being a
// useful selector.
const maxTextSelectorLen = 30

// Resolution is the outcome of resolving one element.
type Resolution struct {
	Primary      string
	Alternatives []string
}

// Weak reports whether the primary selector is a bare tag name, i.e. no
// strategy beyond the last resort matched. Callers must treat weak
// resolutions as unstable.
func (r Resolution) Weak() bool {
	return !strings.ContainsAny(r.Primary, "#[.=") && !strings.HasPrefix(r.Primary, "text=")
}

// DocumentContext carries the per-document facts resolution needs beyond the
// element itself. ClassCounts maps every class name seen in the document to
// its occurrence count.
type DocumentContext struct {
	ClassCounts map[string]int
}

// classUnique reports whether the class occurs exactly once in the document.
func (c DocumentContext) classUnique(name string) bool {
	if c.ClassCounts == nil {
		return false
	}
	return c.ClassCounts[name] == 1
}

// strategy names the selector source that won, used to exclude it when
// building alternatives.
type strategy int

const (
	stratID strategy = iota
	stratTestAttr
	stratAriaLabel
	stratName
	stratText
	stratClass
	stratTag
	stratRole
)

// Resolve produces a primary selector and up to three alternatives for an
// element described by its tag, attributes and trimmed visible text.
//
// Priority for the primary: id, test attribute, aria-label, name attribute,
// short visible text (buttons and links only), document-unique class, tag.
// A tag-only primary is weak; callers mark the element unstable.
func Resolve(tag string, attrs map[string]string, text string, docCtx DocumentContext) Resolution {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		tag = "*"
	}

	primary, won := primarySelector(tag, attrs, text, docCtx)
	return Resolution{
		Primary:      primary,
		Alternatives: alternativeSelectors(tag, attrs, text, docCtx, won),
	}
}

func primarySelector(tag string, attrs map[string]string, text string, docCtx DocumentContext) (string, strategy) {
	if sel, ok := idSelector(attrs); ok {
		return sel, stratID
	}
	if sel, ok := testAttrSelector(attrs); ok {
		return sel, stratTestAttr
	}
	if label := attrs["aria-label"]; label != "" {
		return attributeSelector("", "aria-label", label), stratAriaLabel
	}
	if name := attrs["name"]; name != "" {
		return attributeSelector(tag, "name", name), stratName
	}
	if sel, ok := textSelector(tag, attrs, text); ok {
		return sel, stratText
	}
	if sel, ok := uniqueClassSelector(attrs, docCtx); ok {
		return sel, stratClass
	}
	// Last resort. Callers treat this as weak.
	return tag, stratTag
}

// alternativeSelectors builds fallbacks in relative priority order, skipping
// whichever strategy already produced the primary. Capped at three.
func alternativeSelectors(tag string, attrs map[string]string, text string, docCtx DocumentContext, won strategy) []string {
	var alts []string
	add := func(sel string) {
		if len(alts) >= 3 || sel == "" {
			return
		}
		for _, existing := range alts {
			if existing == sel {
				return
			}
		}
		alts = append(alts, sel)
	}

	if won != stratText {
		if sel, ok := textSelector(tag, attrs, text); ok {
			add(sel)
		}
	}
	if won != stratAriaLabel {
		if label := attrs["aria-label"]; label != "" {
			add(attributeSelector("", "aria-label", label))
		}
	}
	if won != stratClass {
		if sel, ok := uniqueClassSelector(attrs, docCtx); ok {
			add(sel)
		}
	}
	if role := attrs["role"]; role != "" {
		add(attributeSelector("", "role", role))
	}
	return alts
}

func idSelector(attrs map[string]string) (string, bool) {
	id := attrs["id"]
	if id == "" {
		return "", false
	}
	if validIdentifier.MatchString(id) {
		return "#" + id, true
	}
	// Ids with exotic characters still work as attribute selectors.
	return attributeSelector("", "id", id), true
}

func testAttrSelector(attrs map[string]string) (string, bool) {
	for _, attr := range testAttributes {
		if val := attrs[attr]; val != "" {
			return attributeSelector("", attr, val), true
		}
	}
	return "", false
}

// textSelector is only meaningful for elements activated by their label.
func textSelector(tag string, attrs map[string]string, text string) (string, bool) {
	if text == "" || len(text) >= maxTextSelectorLen {
		return "", false
	}
	role := attrs["role"]
	clickable := tag == "button" || tag == "a" || role == "button" || role == "link" ||
		(tag == "input" && (attrs["type"] == "submit" || attrs["type"] == "button"))
	if !clickable {
		return "", false
	}
	return fmt.Sprintf("text=%q", text), true
}

func uniqueClassSelector(attrs map[string]string, docCtx DocumentContext) (string, bool) {
	for _, class := range strings.Fields(attrs["class"]) {
		if !validIdentifier.MatchString(class) {
			continue
		}
		if docCtx.classUnique(class) {
			return "." + class, true
		}
	}
	return "", false
}

// attributeSelector renders tag[attr="value"], escaping quotes in the value.
func attributeSelector(tag, attr, value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf(`%s[%s="%s"]`, tag, attr, escaped)
}
