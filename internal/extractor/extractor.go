// Package extractor scans element snapshots collected from a page and turns
// them into named, selector-resolved element descriptors. It never touches a
// DOM handle: any source able to produce plain ElementSnapshot records (a live
// chromedp page, a static HTML document) can feed it.
package extractor

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/selector"
)

// Extractor converts raw snapshots into element descriptors.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger.Named("extractor")}
}

// Extract filters the snapshots down to visible interactive elements and
// produces one descriptor per retained snapshot. Elements for which no
// selector strategy produces anything usable are silently skipped.
func (e *Extractor) Extract(snapshots []schemas.ElementSnapshot) []schemas.ElementDescriptor {
	docCtx := buildDocumentContext(snapshots)
	names := newNameAllocator()

	descriptors := make([]schemas.ElementDescriptor, 0, len(snapshots))
	for _, snap := range snapshots {
		if !retain(snap) {
			continue
		}

		res := selector.Resolve(snap.Tag, snap.Attributes, snap.Text, docCtx)
		if res.Primary == "" {
			// No strategy at all, not even a tag. Nothing to record.
			e.logger.Debug("Skipping unresolvable element", zap.Int("ordinal", snap.Ordinal))
			continue
		}

		now := time.Now().UTC()
		descriptors = append(descriptors, schemas.ElementDescriptor{
			ID:                   uuid.New().String(),
			Name:                 names.allocate(deriveName(snap)),
			PrimarySelector:      res.Primary,
			AlternativeSelectors: res.Alternatives,
			ElementType:          Classify(snap),
			Attributes:           cloneAttrs(snap.Attributes),
			TextSnapshot:         strings.TrimSpace(snap.Text),
			Ordinal:              snap.Ordinal,
			LastVerifiedAt:       now,
			// A weak (tag-only) selector has not really located anything yet.
			IsStable: !res.Weak(),
		})
	}

	e.logger.Debug("Extraction complete",
		zap.Int("candidates", len(snapshots)),
		zap.Int("retained", len(descriptors)))
	return descriptors
}

// retain applies the interactability filter: rendered, visible, and matching
// one of the interactive tag/role predicates.
func retain(snap schemas.ElementSnapshot) bool {
	if snap.Tag == "" || !snap.Visible {
		return false
	}
	if snap.Width == 0 || snap.Height == 0 {
		return false
	}
	switch strings.ToLower(snap.Tag) {
	case "button", "select", "textarea":
		return true
	case "a":
		return snap.Attr("href") != ""
	case "input":
		return !strings.EqualFold(snap.Attr("type"), "hidden")
	}
	if snap.Attr("role") == "button" {
		return true
	}
	return snap.HasClickHandler
}

// Classify infers the element type from tag, input type and role.
func Classify(snap schemas.ElementSnapshot) schemas.ElementType {
	switch strings.ToLower(snap.Tag) {
	case "button":
		return schemas.ElementButton
	case "a":
		return schemas.ElementLink
	case "select":
		return schemas.ElementDropdown
	case "textarea":
		return schemas.ElementInput
	case "input":
		switch strings.ToLower(snap.Attr("type")) {
		case "checkbox":
			return schemas.ElementCheckbox
		case "radio":
			return schemas.ElementRadio
		case "submit", "button", "reset", "image":
			return schemas.ElementButton
		default:
			return schemas.ElementInput
		}
	}
	if snap.Attr("role") == "button" {
		return schemas.ElementButton
	}
	return schemas.ElementOther
}

// buildDocumentContext counts class occurrences across every snapshot so the
// resolver can judge class uniqueness within this document.
func buildDocumentContext(snapshots []schemas.ElementSnapshot) selector.DocumentContext {
	counts := make(map[string]int)
	for _, snap := range snapshots {
		for _, class := range strings.Fields(snap.Attr("class")) {
			counts[class]++
		}
	}
	return selector.DocumentContext{ClassCounts: counts}
}

func cloneAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
