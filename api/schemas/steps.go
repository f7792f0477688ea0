package schemas

import "time"

// -- Recorded Test Steps --

// StepAction enumerates every action kind the recorder understands.
type StepAction string

const (
	ActionClick    StepAction = "click"
	ActionFill     StepAction = "fill"
	ActionSelect   StepAction = "select"
	ActionCheck    StepAction = "check"
	ActionUncheck  StepAction = "uncheck"
	ActionHover    StepAction = "hover"
	ActionNavigate StepAction = "navigate"
	ActionWait     StepAction = "wait"
	ActionAssert   StepAction = "assert"
)

// AssertionKind enumerates the assertion payload variants of an assert step.
type AssertionKind string

const (
	AssertVisible AssertionKind = "visible"
	AssertText    AssertionKind = "text"
	AssertValue   AssertionKind = "value"
	AssertCount   AssertionKind = "count"
	AssertURL     AssertionKind = "url"
	AssertTitle   AssertionKind = "title"
)

// Assertion is the typed payload of an assert step.
type Assertion struct {
	Kind     AssertionKind `json:"kind"`
	Expected string        `json:"expected"`
}

// TestStep is one recorded user or browser action. Steps are append-only and
// strictly timestamp-ordered within a session; they live only as long as the
// recording and are discarded once code has been synthesized from them.
type TestStep struct {
	ID          string      `json:"id"`
	Action      StepAction  `json:"action"`
	ElementID   string      `json:"elementId,omitempty"`
	ElementName string      `json:"elementName,omitempty"`
	Selector    string      `json:"selector,omitempty"`
	Value       string      `json:"value,omitempty"`
	Assertion   *Assertion  `json:"assertion,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
