package schemas

import "errors"

// Sentinel errors shared across the engine. Callers are expected to test them
// with errors.Is; everything else is a wrapped driver or store error.
var (
	// ErrSessionNotFound is returned for an unknown session id, including any
	// call made after the session has been ended.
	ErrSessionNotFound = errors.New("session not found")

	// ErrElementNotFound is returned when a selector matches nothing on the
	// live page, or an element id is absent from the session's mappings.
	ErrElementNotFound = errors.New("element not found")

	// ErrSelectorUnresolvable is returned by an explicit mapping call when no
	// selector strategy produced a usable selector for the target.
	ErrSelectorUnresolvable = errors.New("no selector strategy resolved the element")

	// ErrPageObjectNotFound is returned when neither an exact URL nor any
	// stored URL pattern matches.
	ErrPageObjectNotFound = errors.New("page object not found")

	// ErrNotRecording is returned by StopRecording when no recording window
	// is open.
	ErrNotRecording = errors.New("session is not recording")
)
