package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/config"
	"github.com/xkilldash9x/pagesmith/internal/pagestore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Fakes --

type fakePage struct {
	mu        sync.Mutex
	url       string
	title     string
	snapshots []schemas.ElementSnapshot
	counts    map[string]int
	texts     map[string]string
	values    map[string]string
	describes map[string]schemas.ElementSnapshot
	navErr    error
	clicks    []string
	closed    bool
}

var _ schemas.Page = (*fakePage)(nil)

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.navErr != nil {
		return f.navErr
	}
	f.url = url
	return nil
}

func (f *fakePage) URL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *fakePage) Title(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, nil
}

func (f *fakePage) Snapshots(ctx context.Context) ([]schemas.ElementSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots, nil
}

func (f *fakePage) Describe(ctx context.Context, sel string) (schemas.ElementSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.describes[sel]
	if !ok {
		return schemas.ElementSnapshot{}, fmt.Errorf("selector %q matched nothing: %w", sel, schemas.ErrElementNotFound)
	}
	return snap, nil
}

func (f *fakePage) Count(ctx context.Context, sel string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		return 1, nil
	}
	return f.counts[sel], nil
}

func (f *fakePage) Text(ctx context.Context, sel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts[sel], nil
}

func (f *fakePage) Value(ctx context.Context, sel string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[sel], nil
}

func (f *fakePage) matched(sel string) bool {
	if f.counts == nil {
		return true
	}
	return f.counts[sel] > 0
}

func (f *fakePage) Click(ctx context.Context, sel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.matched(sel) {
		return fmt.Errorf("selector %q matched nothing: %w", sel, schemas.ErrElementNotFound)
	}
	f.clicks = append(f.clicks, sel)
	return nil
}

func (f *fakePage) Fill(ctx context.Context, sel, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.matched(sel) {
		return fmt.Errorf("selector %q matched nothing: %w", sel, schemas.ErrElementNotFound)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[sel] = value
	return nil
}

func (f *fakePage) SelectOption(ctx context.Context, sel, value string) error {
	return f.Fill(ctx, sel, value)
}

func (f *fakePage) SetChecked(ctx context.Context, sel string, checked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.matched(sel) {
		return fmt.Errorf("selector %q matched nothing: %w", sel, schemas.ErrElementNotFound)
	}
	return nil
}

func (f *fakePage) Hover(ctx context.Context, sel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.matched(sel) {
		return fmt.Errorf("selector %q matched nothing: %w", sel, schemas.ErrElementNotFound)
	}
	return nil
}

func (f *fakePage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.matched(sel) {
		return fmt.Errorf("selector %q matched nothing: %w", sel, schemas.ErrElementNotFound)
	}
	return nil
}

func (f *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte{0x89, 0x50}, nil
}

func (f *fakePage) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeDriver struct {
	mu     sync.Mutex
	pages  []*fakePage
	next   int
	closed bool
}

var _ schemas.Driver = (*fakeDriver)(nil)

func (d *fakeDriver) NewPage(ctx context.Context) (schemas.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.pages) {
		return nil, errors.New("no pages configured")
	}
	p := d.pages[d.next]
	d.next++
	return p, nil
}

func (d *fakeDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// -- Helpers --

func newTestManager(t *testing.T, pages ...*fakePage) (*Manager, *fakeDriver) {
	t.Helper()
	driver := &fakeDriver{pages: pages}
	store := pagestore.New(zap.NewNop(), nil)
	m := NewManager(zap.NewNop(), config.NewDefaultConfig(), driver, store, nil)
	return m, driver
}

func loginSnapshots() []schemas.ElementSnapshot {
	return []schemas.ElementSnapshot{
		{
			Tag: "input", Visible: true, Width: 200, Height: 30, Ordinal: 0,
			Attributes: map[string]string{"id": "email", "type": "email", "placeholder": "Email"},
		},
		{
			Tag: "button", Text: "Log in", Visible: true, Width: 80, Height: 30, Ordinal: 1,
			Attributes: map[string]string{"id": "login"},
		},
	}
}

// -- Tests --

func TestNavigateBuildsMappingsFromExtraction(t *testing.T) {
	page := &fakePage{title: "Login", snapshots: []schemas.ElementSnapshot{
		{
			Tag: "button", Text: "Go", Visible: true, Width: 50, Height: 20,
			Attributes: map[string]string{"id": "go"},
		},
	}}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()

	require.NoError(t, m.Navigate(ctx, id, "https://example.com/go"))

	s, err := m.get(id)
	require.NoError(t, err)
	mappings := s.Mappings()
	require.Len(t, mappings, 1)
	assert.Equal(t, "#go", mappings[0].PrimarySelector)
	assert.Equal(t, schemas.ElementButton, mappings[0].ElementType)
	assert.True(t, mappings[0].IsStable)
}

func TestNavigateFailureKeepsPriorState(t *testing.T) {
	page := &fakePage{snapshots: loginSnapshots()}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()

	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))
	s, err := m.get(id)
	require.NoError(t, err)
	before := len(s.Mappings())

	page.mu.Lock()
	page.navErr = errors.New("net::ERR_TIMED_OUT")
	page.mu.Unlock()

	err = m.Navigate(ctx, id, "https://example.com/next")
	require.Error(t, err)
	assert.Len(t, s.Mappings(), before)
	assert.Equal(t, stateNavigated, s.state)
}

func TestRecordingWindowInvariant(t *testing.T) {
	page := &fakePage{snapshots: loginSnapshots()}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()
	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))

	// Before the window: not recorded.
	require.NoError(t, m.Click(ctx, id, "#login", ""))

	require.NoError(t, m.StartRecording(id))
	require.NoError(t, m.Fill(ctx, id, "#email", "user@example.com", ""))
	require.NoError(t, m.Click(ctx, id, "#login", ""))

	s, err := m.get(id)
	require.NoError(t, err)
	steps := s.recorder.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, schemas.ActionFill, steps[0].Action)
	assert.Equal(t, schemas.ActionClick, steps[1].Action)
	assert.False(t, steps[0].Timestamp.After(steps[1].Timestamp))

	_, err = m.StopRecording(ctx, id)
	require.NoError(t, err)

	// After the window: executed but not recorded.
	require.NoError(t, m.Click(ctx, id, "#login", ""))
	_, err = m.StopRecording(ctx, id)
	assert.ErrorIs(t, err, schemas.ErrNotRecording)
}

func TestClickUnknownSelectorFailsWithoutRetry(t *testing.T) {
	page := &fakePage{
		snapshots: loginSnapshots(),
		counts:    map[string]int{"#email": 1, "#login": 1},
	}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()
	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))

	err = m.Click(ctx, id, "#missing", "")
	assert.ErrorIs(t, err, schemas.ErrElementNotFound)
	assert.Empty(t, page.clicks)
}

func TestImplicitMappingOnNamedClickWhileRecording(t *testing.T) {
	page := &fakePage{
		snapshots: loginSnapshots(),
		describes: map[string]schemas.ElementSnapshot{
			".submit-area > button": {
				Tag: "button", Text: "Submit", Visible: true, Width: 60, Height: 24,
				Attributes: map[string]string{"class": "primary"},
			},
		},
	}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()
	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))
	require.NoError(t, m.StartRecording(id))

	require.NoError(t, m.Click(ctx, id, ".submit-area > button", "submit"))

	s, err := m.get(id)
	require.NoError(t, err)

	var mapped *schemas.ElementDescriptor
	for _, d := range s.Mappings() {
		if d.Name == "submit" {
			mapped = &d
			break
		}
	}
	require.NotNil(t, mapped, "named click must create a mapping")
	assert.Equal(t, ".submit-area > button", mapped.PrimarySelector)
	assert.Equal(t, schemas.ElementButton, mapped.ElementType)

	steps := s.recorder.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, schemas.ActionClick, steps[0].Action)
	assert.Equal(t, "submit", steps[0].ElementName)
	assert.Equal(t, mapped.ID, steps[0].ElementID)
}

func TestMapElementUnresolvable(t *testing.T) {
	page := &fakePage{
		snapshots: loginSnapshots(),
		describes: map[string]schemas.ElementSnapshot{
			"button": {Tag: "button", Visible: true, Width: 10, Height: 10},
		},
	}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()
	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))

	_, err = m.MapElement(ctx, id, "button", "mystery")
	assert.ErrorIs(t, err, schemas.ErrSelectorUnresolvable)

	_, err = m.MapElement(ctx, id, "#nope", "ghost")
	assert.ErrorIs(t, err, schemas.ErrElementNotFound)
}

func TestVerifyStabilityPromotesAlternative(t *testing.T) {
	page := &fakePage{
		snapshots: loginSnapshots(),
		counts: map[string]int{
			"#email": 1, "#login": 0, `text="Log in"`: 1,
		},
		describes: map[string]schemas.ElementSnapshot{},
	}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()
	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))

	s, err := m.get(id)
	require.NoError(t, err)
	var loginID string
	for _, d := range s.Mappings() {
		if d.PrimarySelector == "#login" {
			loginID = d.ID
			require.Contains(t, d.AlternativeSelectors, `text="Log in"`)
		}
	}
	require.NotEmpty(t, loginID)

	ok, err := m.VerifyStability(ctx, id, loginID)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, d := range s.Mappings() {
		if d.ID == loginID {
			assert.Equal(t, `text="Log in"`, d.PrimarySelector)
			assert.Contains(t, d.AlternativeSelectors, "#login")
			assert.True(t, d.IsStable)
		}
	}
}

func TestVerifyStabilityAllSelectorsFail(t *testing.T) {
	page := &fakePage{
		snapshots: loginSnapshots(),
	}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()
	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))

	s, err := m.get(id)
	require.NoError(t, err)
	mappings := s.Mappings()
	require.NotEmpty(t, mappings)
	target := mappings[0]

	// Every selector now resolves to nothing.
	page.mu.Lock()
	page.counts = map[string]int{}
	page.mu.Unlock()

	ok, err := m.VerifyStability(ctx, id, target.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, d := range s.Mappings() {
		if d.ID == target.ID {
			assert.Equal(t, target.PrimarySelector, d.PrimarySelector, "descriptor must not be mutated")
		}
	}

	_, err = m.VerifyStability(ctx, id, "no-such-element")
	assert.ErrorIs(t, err, schemas.ErrElementNotFound)
}

func TestAssertRecordsAndReportsMismatch(t *testing.T) {
	page := &fakePage{
		snapshots: loginSnapshots(),
		texts:     map[string]string{"#banner": "Welcome"},
		counts:    map[string]int{"#email": 1, "#login": 1, "#banner": 1},
	}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()
	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))
	require.NoError(t, m.StartRecording(id))

	require.NoError(t, m.Assert(ctx, id, "#banner",
		schemas.Assertion{Kind: schemas.AssertText, Expected: "Welcome"}))

	err = m.Assert(ctx, id, "#banner",
		schemas.Assertion{Kind: schemas.AssertText, Expected: "Goodbye"})
	require.Error(t, err)

	s, err := m.get(id)
	require.NoError(t, err)
	steps := s.recorder.Steps()
	require.Len(t, steps, 2, "failed assertions are still recorded")
	require.NotNil(t, steps[1].Assertion)
	assert.Equal(t, "Goodbye", steps[1].Assertion.Expected)
}

func TestStopRecordingSynthesizesSource(t *testing.T) {
	page := &fakePage{title: "Login", snapshots: loginSnapshots()}
	m, _ := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.End(ctx, id)) }()
	require.NoError(t, m.Navigate(ctx, id, "https://example.com/login"))
	require.NoError(t, m.StartRecording(id))
	require.NoError(t, m.Fill(ctx, id, "#email", "user@example.com", ""))
	require.NoError(t, m.Click(ctx, id, "#login", ""))

	source, err := m.StopRecording(ctx, id)
	require.NoError(t, err)

	assert.Contains(t, source, "test(")
	fill := indexOf(t, source, ".fillEmail(")
	click := indexOf(t, source, ".clickLogIn(")
	assert.Less(t, fill, click, "steps must be emitted in recorded order")
}

func TestEndTwiceReturnsNotFound(t *testing.T) {
	page := &fakePage{}
	m, driver := newTestManager(t, page)
	ctx := context.Background()

	id, err := m.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, m.End(ctx, id))
	assert.True(t, page.closed)

	err = m.End(ctx, id)
	assert.ErrorIs(t, err, schemas.ErrSessionNotFound)

	err = m.Navigate(ctx, id, "https://example.com")
	assert.ErrorIs(t, err, schemas.ErrSessionNotFound)

	assert.False(t, driver.closed, "ending one session must not close the driver")
}

func TestIndependentSessionsDoNotShareState(t *testing.T) {
	pageA := &fakePage{snapshots: loginSnapshots()}
	pageB := &fakePage{snapshots: []schemas.ElementSnapshot{
		{
			Tag: "a", Text: "Docs", Visible: true, Width: 40, Height: 15,
			Attributes: map[string]string{"href": "/docs", "id": "docs"},
		},
	}}
	m, _ := newTestManager(t, pageA, pageB)
	ctx := context.Background()

	idA, err := m.Start(ctx)
	require.NoError(t, err)
	idB, err := m.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Navigate(ctx, idA, "https://example.com/login"))
	require.NoError(t, m.Navigate(ctx, idB, "https://example.com/docs"))

	sA, err := m.get(idA)
	require.NoError(t, err)
	sB, err := m.get(idB)
	require.NoError(t, err)
	assert.Len(t, sA.Mappings(), 2)
	assert.Len(t, sB.Mappings(), 1)

	require.NoError(t, m.Shutdown(ctx))
	assert.True(t, pageA.closed)
	assert.True(t, pageB.closed)
}

func TestShutdownClosesDriver(t *testing.T) {
	m, driver := newTestManager(t)
	require.NoError(t, m.Shutdown(context.Background()))
	assert.True(t, driver.closed)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	i := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, i, 0, "expected %q in generated source:\n%s", needle, haystack)
	return i
}
