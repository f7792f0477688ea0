package schemas

import "time"

// -- Element Classification --

// ElementType classifies an interactive element by the kind of action it
// naturally supports. It drives which action methods the synthesizer emits.
type ElementType string

const (
	ElementButton   ElementType = "button"
	ElementLink     ElementType = "link"
	ElementInput    ElementType = "input"
	ElementDropdown ElementType = "dropdown"
	ElementCheckbox ElementType = "checkbox"
	ElementRadio    ElementType = "radio"
	ElementOther    ElementType = "other"
)

// -- Element Descriptor --

// ElementDescriptor is the durable record of one interactive element observed
// on a page. Identity across visits is approximated by primary-selector
// equality; Ordinal (DOM order at extraction time) is carried as a secondary
// key so two elements that degrade to the same weak selector stay
// distinguishable inside a single Page Object.
type ElementDescriptor struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	PrimarySelector      string            `json:"primarySelector"`
	AlternativeSelectors []string          `json:"alternativeSelectors,omitempty"`
	ElementType          ElementType       `json:"elementType"`
	Attributes           map[string]string `json:"attributes,omitempty"`
	TextSnapshot         string            `json:"textSnapshot,omitempty"`
	Ordinal              int               `json:"ordinal"`
	LastVerifiedAt       time.Time         `json:"lastVerifiedAt"`
	IsStable             bool              `json:"isStable"`
}

// Clone returns a deep copy of the descriptor. The attribute map is copied so
// callers can hand clones across session boundaries without aliasing.
func (e ElementDescriptor) Clone() ElementDescriptor {
	out := e
	if e.Attributes != nil {
		out.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	if e.AlternativeSelectors != nil {
		out.AlternativeSelectors = append([]string(nil), e.AlternativeSelectors...)
	}
	return out
}

// -- Element Snapshot --

// SnapshotVersion identifies the serialization contract between the in-page
// collector script and the extractor. Bump it whenever the record shape
// changes so a stale script cannot silently feed the wrong fields.
const SnapshotVersion = 2

// ElementSnapshot is the plain, driver-agnostic record produced for each
// candidate node by a DOM query capability (a live browser page or a static
// HTML document). The extractor consumes only these records, never DOM
// handles, so extraction logic can be tested without a browser.
type ElementSnapshot struct {
	Tag             string            `json:"tag"`
	Text            string            `json:"text"`
	Attributes      map[string]string `json:"attributes"`
	Visible         bool              `json:"visible"`
	HasClickHandler bool              `json:"hasClickHandler"`
	Width           float64           `json:"width"`
	Height          float64           `json:"height"`
	Ordinal         int               `json:"ordinal"`
}

// Attr returns the named attribute or the empty string.
func (s ElementSnapshot) Attr(name string) string {
	if s.Attributes == nil {
		return ""
	}
	return s.Attributes[name]
}
