package browser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
)

// The selector resolver emits two selector dialects: plain CSS and text
// selectors of the form text="...". Chrome understands only CSS and XPath, so
// text selectors are translated to an XPath over clickable elements here.

const textSelectorPrefix = "text="

func isTextSelector(sel string) bool {
	return strings.HasPrefix(sel, textSelectorPrefix)
}

// textSelectorValue extracts the target text from a text selector.
func textSelectorValue(sel string) string {
	raw := strings.TrimPrefix(sel, textSelectorPrefix)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		return unquoted
	}
	return raw
}

// locator returns the string passed to chromedp query actions.
func locator(sel string) string {
	if isTextSelector(sel) {
		return textXPath(textSelectorValue(sel))
	}
	return sel
}

// matchOption picks the chromedp matching mode for the selector dialect.
func matchOption(sel string) chromedp.QueryOption {
	if isTextSelector(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// textXPath matches clickable elements whose normalized text equals the value.
func textXPath(text string) string {
	return fmt.Sprintf(
		`//*[self::button or self::a or @role="button" or @type="submit"][normalize-space(.)=%s]`,
		xpathLiteral(text))
}

// xpathLiteral renders a string as an XPath literal, using concat() when the
// value contains both quote characters.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	var b strings.Builder
	b.WriteString("concat(")
	for i, part := range parts {
		if i > 0 {
			b.WriteString(`, '"', `)
		}
		b.WriteString(`"` + part + `"`)
	}
	b.WriteString(")")
	return b.String()
}

// countExpression builds a JS expression returning the number of matches.
func countExpression(sel string) string {
	if isTextSelector(sel) {
		return fmt.Sprintf(
			`document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null).snapshotLength`,
			jsString(textXPath(textSelectorValue(sel))))
	}
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(sel))
}

// firstMatchExpression builds a JS expression yielding the first matching
// node or null.
func firstMatchExpression(sel string) string {
	if isTextSelector(sel) {
		return fmt.Sprintf(
			`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`,
			jsString(textXPath(textSelectorValue(sel))))
	}
	return fmt.Sprintf(`document.querySelector(%s)`, jsString(sel))
}

// jsString renders a Go string as a JS string literal.
func jsString(s string) string {
	return strconv.Quote(s)
}
