package schemas

import "time"

// PageObject is the accumulating model of a named page or page family. It is
// created on the first navigation to an unmatched URL and grown by additive
// merges on every later visit; it is never deleted automatically.
type PageObject struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	URL           string              `json:"url"`
	URLPattern    string              `json:"urlPattern"`
	Elements      []ElementDescriptor `json:"elements"`
	Version       int                 `json:"version"`
	LastUpdatedAt time.Time           `json:"lastUpdatedAt"`
}

// FindElementByID returns a pointer to the element with the given id, or nil.
func (p *PageObject) FindElementByID(id string) *ElementDescriptor {
	for i := range p.Elements {
		if p.Elements[i].ID == id {
			return &p.Elements[i]
		}
	}
	return nil
}

// FindElementBySelector returns a pointer to the first element whose primary
// selector matches, or nil.
func (p *PageObject) FindElementBySelector(selector string) *ElementDescriptor {
	for i := range p.Elements {
		if p.Elements[i].PrimarySelector == selector {
			return &p.Elements[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the page object.
func (p *PageObject) Clone() *PageObject {
	out := *p
	out.Elements = make([]ElementDescriptor, len(p.Elements))
	for i, el := range p.Elements {
		out.Elements[i] = el.Clone()
	}
	return &out
}
