package schemas

import (
	"context"
	"time"
)

// -- Browser Driver Interfaces --

// Driver abstracts the browser automation engine. The session layer treats it
// as an opaque capability: launch happens in the constructor of the concrete
// implementation, Close must release the underlying browser process.
type Driver interface {
	// NewPage allocates a fresh page (tab) bound to the driver's browser.
	NewPage(ctx context.Context) (Page, error)
	// Close shuts down the browser and releases all of its resources.
	Close(ctx context.Context) error
}

// Page is one live browser page. All calls may suspend for the duration of
// network and render activity; callers must serialize calls per page.
type Page interface {
	// Navigate loads the URL and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// URL returns the page's current location.
	URL(ctx context.Context) (string, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// Snapshots collects plain records for every candidate interactive node.
	Snapshots(ctx context.Context) ([]ElementSnapshot, error)
	// Describe returns the plain record for the first node matching the
	// selector. ErrElementNotFound when nothing matches.
	Describe(ctx context.Context, selector string) (ElementSnapshot, error)
	// Count returns how many nodes the selector currently matches.
	Count(ctx context.Context, selector string) (int, error)
	// Text returns the trimmed visible text of the first match.
	Text(ctx context.Context, selector string) (string, error)
	// Value returns the value property of the first match.
	Value(ctx context.Context, selector string) (string, error)
	// Click dispatches a click on the first node matching the selector.
	Click(ctx context.Context, selector string) error
	// Fill clears the first matching node and types the value into it.
	Fill(ctx context.Context, selector, value string) error
	// SelectOption selects the option with the given value in a dropdown.
	SelectOption(ctx context.Context, selector, value string) error
	// SetChecked forces the checked state of a checkbox or radio input.
	SetChecked(ctx context.Context, selector string, checked bool) error
	// Hover moves the pointer over the first matching node.
	Hover(ctx context.Context, selector string) error
	// WaitVisible blocks until the selector matches a visible node.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the page.
	Close(ctx context.Context) error
}

// -- Persistence Collaborator --

// PageObjectRepository is the optional persistence collaborator for page
// objects: load everything at startup, save one on every structural change.
// The engine never depends on a concrete database.
type PageObjectRepository interface {
	LoadAll(ctx context.Context) ([]*PageObject, error)
	Save(ctx context.Context, pom *PageObject) error
}

// -- Artifact Collaborator --

// ArtifactSink receives the byte artifacts the engine produces (screenshots,
// generated source files) and returns where it put them. The engine itself
// never writes files directly.
type ArtifactSink interface {
	// SaveScreenshot stores a PNG capture taken during a session action and
	// returns its path or identifier.
	SaveScreenshot(sessionID string, data []byte) (string, error)
	// SaveSource stores a generated source file under the given name.
	SaveSource(name string, contents string) (string, error)
}
