package extractor

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/pagesmith/api/schemas"
)

// interactiveQuery mirrors the selector list the in-page collector uses, so
// the static path and the live path see the same candidate set.
const interactiveQuery = `button, a[href], input, textarea, select, [role="button"], [onclick]`

// SnapshotHTML produces element snapshots from a static HTML document. It is
// the offline counterpart of a live page's Snapshots call: static markup has
// no layout, so elements count as rendered unless the markup itself hides
// them (hidden attribute, input type=hidden, inline display/visibility).
func SnapshotHTML(r io.Reader) ([]schemas.ElementSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML document: %w", err)
	}
	return SnapshotDocument(doc), nil
}

// SnapshotDocument walks an already-parsed document.
func SnapshotDocument(doc *goquery.Document) []schemas.ElementSnapshot {
	var snapshots []schemas.ElementSnapshot
	ordinal := 0

	doc.Find(interactiveQuery).Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		attributes := make(map[string]string, len(node.Attr))
		for _, attr := range node.Attr {
			attributes[attr.Key] = attr.Val
		}

		text := strings.TrimSpace(sel.Text())
		if len(text) > 200 {
			cut := 200
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}

		visible := !markupHidden(attributes)
		width, height := 1.0, 1.0
		if !visible {
			width, height = 0, 0
		}

		snapshots = append(snapshots, schemas.ElementSnapshot{
			Tag:             strings.ToLower(node.Data),
			Text:            text,
			Attributes:      attributes,
			Visible:         visible,
			HasClickHandler: attributes["onclick"] != "",
			Width:           width,
			Height:          height,
			Ordinal:         ordinal,
		})
		ordinal++
	})

	return snapshots
}

// markupHidden detects the hiding signals expressible in markup alone.
func markupHidden(attributes map[string]string) bool {
	if _, ok := attributes["hidden"]; ok {
		return true
	}
	if strings.EqualFold(attributes["type"], "hidden") {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(attributes["style"]), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
