package extractor

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
)

func snap(tag string, attrs map[string]string, text string) schemas.ElementSnapshot {
	return schemas.ElementSnapshot{
		Tag:        tag,
		Text:       text,
		Attributes: attrs,
		Visible:    true,
		Width:      40,
		Height:     20,
	}
}

func TestExtractSingleButton(t *testing.T) {
	e := New(zap.NewNop())

	descriptors := e.Extract([]schemas.ElementSnapshot{
		snap("button", map[string]string{"id": "go"}, "Go"),
	})

	require.Len(t, descriptors, 1)
	d := descriptors[0]
	assert.Equal(t, "#go", d.PrimarySelector)
	assert.Equal(t, schemas.ElementButton, d.ElementType)
	assert.Equal(t, "go", d.Name)
	assert.Equal(t, "Go", d.TextSnapshot)
	assert.True(t, d.IsStable)
	assert.NotEmpty(t, d.ID)
}

func TestExtractFiltersNonInteractable(t *testing.T) {
	e := New(zap.NewNop())

	hidden := snap("button", map[string]string{"id": "hidden"}, "x")
	hidden.Visible = false
	zeroArea := snap("button", map[string]string{"id": "zero"}, "x")
	zeroArea.Width = 0
	hiddenInput := snap("input", map[string]string{"type": "hidden", "name": "csrf"}, "")
	bareAnchor := snap("a", map[string]string{}, "no href")
	plainDiv := snap("div", map[string]string{"class": "card"}, "content")

	descriptors := e.Extract([]schemas.ElementSnapshot{
		hidden, zeroArea, hiddenInput, bareAnchor, plainDiv,
		snap("input", map[string]string{"type": "text", "name": "email"}, ""),
	})

	require.Len(t, descriptors, 1)
	assert.Equal(t, `input[name="email"]`, descriptors[0].PrimarySelector)
	assert.Equal(t, schemas.ElementInput, descriptors[0].ElementType)
}

func TestExtractClassification(t *testing.T) {
	e := New(zap.NewNop())

	tests := []struct {
		name string
		in   schemas.ElementSnapshot
		want schemas.ElementType
	}{
		{"Anchor", snap("a", map[string]string{"href": "/home"}, "Home"), schemas.ElementLink},
		{"Select", snap("select", map[string]string{"name": "country"}, ""), schemas.ElementDropdown},
		{"Checkbox", snap("input", map[string]string{"type": "checkbox", "name": "tos"}, ""), schemas.ElementCheckbox},
		{"Radio", snap("input", map[string]string{"type": "radio", "name": "plan"}, ""), schemas.ElementRadio},
		{"SubmitInput", snap("input", map[string]string{"type": "submit", "name": "send"}, ""), schemas.ElementButton},
		{"Textarea", snap("textarea", map[string]string{"name": "bio"}, ""), schemas.ElementInput},
		{"RoleButton", snap("div", map[string]string{"role": "button", "aria-label": "Menu"}, ""), schemas.ElementButton},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := e.Extract([]schemas.ElementSnapshot{tc.in})
			require.Len(t, out, 1)
			assert.Equal(t, tc.want, out[0].ElementType)
		})
	}
}

func TestExtractNameDerivationAndCollisions(t *testing.T) {
	e := New(zap.NewNop())

	descriptors := e.Extract([]schemas.ElementSnapshot{
		snap("button", map[string]string{"id": "a1"}, "Submit"),
		snap("button", map[string]string{"id": "a2"}, "Submit"),
		snap("input", map[string]string{"type": "text", "placeholder": "Your email address"}, ""),
		snap("input", map[string]string{"type": "text", "aria-label": "First name"}, ""),
	})

	require.Len(t, descriptors, 4)
	assert.Equal(t, "submit", descriptors[0].Name)
	assert.Equal(t, "submit2", descriptors[1].Name)
	assert.Equal(t, "yourEmailAddress", descriptors[2].Name)
	assert.Equal(t, "firstName", descriptors[3].Name)
}

func TestExtractWeakSelectorIsUnstable(t *testing.T) {
	e := New(zap.NewNop())

	out := e.Extract([]schemas.ElementSnapshot{snap("button", nil, "")})
	require.Len(t, out, 1)
	assert.Equal(t, "button", out[0].PrimarySelector)
	assert.False(t, out[0].IsStable)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Log in", "logIn"},
		{"  Your email address  ", "yourEmailAddress"},
		{"user_name", "userName"},
		{"42nd street", "ndStreet"},
		{"!!!", ""},
		{strings.Repeat("very long name ", 10), "veryLongNameVeryLongNameVeryLo"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, slugify(tc.in), "slugify(%q)", tc.in)
	}
}

func TestSnapshotHTML(t *testing.T) {
	const doc = `<html><body>
		<button id="go">Go</button>
		<a href="/login">Log in</a>
		<input type="hidden" name="csrf" value="x">
		<input type="email" placeholder="Email">
		<div style="display: none"><button id="invisible">No</button></div>
	</body></html>`

	snapshots, err := SnapshotHTML(strings.NewReader(doc))
	require.NoError(t, err)

	e := New(zap.NewNop())
	descriptors := e.Extract(snapshots)

	// The hidden input is filtered; the button inside display:none keeps its
	// own markup visible (static analysis sees attributes, not layout), so it
	// survives here. Live extraction would drop it via computed style.
	selectors := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		selectors = append(selectors, d.PrimarySelector)
	}
	assert.Contains(t, selectors, "#go")
	assert.Contains(t, selectors, "#invisible")
	assert.Contains(t, selectors, "input", "the placeholder-only input degrades to a weak tag selector")
	assert.NotContains(t, selectors, `input[name="csrf"]`)
}

func TestSnapshotHTMLTruncatesTextOnRuneBoundary(t *testing.T) {
	// 100 three-byte runes: the 200-byte cap falls mid-rune.
	long := strings.Repeat("日", 100)
	doc := `<html><body><button id="go">` + long + `</button></body></html>`

	snapshots, err := SnapshotHTML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	text := snapshots[0].Text
	assert.LessOrEqual(t, len(text), 200)
	assert.True(t, utf8.ValidString(text), "truncation must not split a rune")
}
