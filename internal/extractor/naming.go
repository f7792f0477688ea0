package extractor

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagesmith/api/schemas"
)

// maxNameLen caps generated identifiers. Anything longer stops being a
// readable method name in synthesized code.
const maxNameLen = 30

// deriveName picks the most human-meaningful source for an element's name:
// visible text, placeholder, aria-label, id, name attribute, then the tag.
func deriveName(snap schemas.ElementSnapshot) string {
	for _, candidate := range []string{
		snap.Text,
		snap.Attr("placeholder"),
		snap.Attr("aria-label"),
		snap.Attr("id"),
		snap.Attr("name"),
	} {
		if slug := slugify(candidate); slug != "" {
			return slug
		}
	}
	return slugify(snap.Tag + "Element")
}

// slugify converts arbitrary text into a lowerCamelCase ASCII identifier safe
// to use as a property or method name, truncated to maxNameLen. Non-ASCII
// runes act as word separators so generated names stay portable across target
// languages.
func slugify(text string) string {
	var b strings.Builder
	upperNext := false
	for _, r := range strings.TrimSpace(text) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			if b.Len() == 0 {
				b.WriteRune(asciiLower(r))
			} else if upperNext {
				b.WriteRune(asciiUpper(r))
			} else {
				b.WriteRune(r)
			}
			upperNext = false
		case r >= '0' && r <= '9':
			// Leading digits are dropped; identifiers must start with a letter.
			if b.Len() > 0 {
				b.WriteRune(r)
			}
			upperNext = false
		default:
			if b.Len() > 0 {
				upperNext = true
			}
		}
		if b.Len() >= maxNameLen {
			break
		}
	}
	return b.String()
}

func asciiLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func asciiUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

// nameAllocator hands out names unique within one extraction pass, suffixing
// collisions with a counter. Collisions are expected (two "Submit" buttons)
// and are a warning-level concern, never a failure.
type nameAllocator struct {
	used map[string]int
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: make(map[string]int)}
}

func (a *nameAllocator) allocate(base string) string {
	if base == "" {
		base = "element"
	}
	count := a.used[base]
	a.used[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, count+1)
}
