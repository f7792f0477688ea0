// Package session owns the per-session state machine and the manager that
// addresses sessions by id. A session wraps one live browser page, the shared
// page-object store, a recorder and an artifact sink; callers serialize
// operations on a single session, independent sessions run in parallel.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/extractor"
	"github.com/xkilldash9x/pagesmith/internal/pagestore"
	"github.com/xkilldash9x/pagesmith/internal/selector"
	"github.com/xkilldash9x/pagesmith/internal/synth"
)

type sessionState int

const (
	stateCreated sessionState = iota
	stateNavigated
	stateEnded
)

// Session is one live browser page plus the transient element mappings built
// from the current page object. It is created by the Manager and addressed
// through it by id.
type Session struct {
	id        string
	logger    *zap.Logger
	page      schemas.Page
	store     *pagestore.Store
	extract   *extractor.Extractor
	generator *synth.Generator
	sink      schemas.ArtifactSink
	recorder  *Recorder
	limiter   *rate.Limiter

	mu         sync.Mutex
	state      sessionState
	currentPOM string
	mappings   map[string]schemas.ElementDescriptor
	bySelector map[string]string

	endOnce sync.Once
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

// pace blocks until the configured minimum action interval has elapsed.
func (s *Session) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("action pacing interrupted: %w", err)
	}
	return nil
}

// Navigate loads the URL, extracts the page's interactive elements, creates
// or merges the matching page object and rebuilds the session's element
// mappings from it. On failure the session keeps its prior state.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.page.Navigate(ctx, url); err != nil {
		return err
	}

	loc, err := s.page.URL(ctx)
	if err != nil || loc == "" {
		loc = url
	}
	title, err := s.page.Title(ctx)
	if err != nil {
		s.logger.Warn("Failed to read page title", zap.Error(err))
	}

	snaps, err := s.page.Snapshots(ctx)
	if err != nil {
		return fmt.Errorf("element extraction after navigation failed: %w", err)
	}
	elements := s.extract.Extract(snaps)

	var pom *schemas.PageObject
	if existing, ok := s.store.FindByURL(loc); ok {
		pom, err = s.store.MergeUpdate(ctx, existing.ID, elements)
		if err != nil {
			return fmt.Errorf("page object merge failed: %w", err)
		}
	} else {
		pom = s.store.CreateFromExtraction(ctx, loc, title, elements)
	}

	s.mu.Lock()
	s.state = stateNavigated
	s.currentPOM = pom.ID
	s.resetMappingsLocked(pom)
	s.mu.Unlock()

	s.logger.Info("Navigated",
		zap.String("url", loc),
		zap.String("pom", pom.Name),
		zap.Int("elements", len(pom.Elements)))

	s.record(schemas.TestStep{Action: schemas.ActionNavigate, Value: loc})
	return nil
}

// resetMappingsLocked repopulates the transient element mappings from the
// page object. Caller holds s.mu.
func (s *Session) resetMappingsLocked(pom *schemas.PageObject) {
	s.mappings = make(map[string]schemas.ElementDescriptor, len(pom.Elements))
	s.bySelector = make(map[string]string, len(pom.Elements))
	for _, el := range pom.Elements {
		s.mappings[el.ID] = el.Clone()
		if _, taken := s.bySelector[el.PrimarySelector]; !taken {
			s.bySelector[el.PrimarySelector] = el.ID
		}
	}
}

// Click clicks the first match. A non-empty name implicitly maps the element
// when the selector is unknown to the session.
func (s *Session) Click(ctx context.Context, sel, name string) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.page.Click(ctx, sel); err != nil {
		return err
	}
	s.finishAction(ctx, schemas.ActionClick, sel, name, "")
	return nil
}

// Fill types the value into the first match, clearing it first.
func (s *Session) Fill(ctx context.Context, sel, value, name string) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.page.Fill(ctx, sel, value); err != nil {
		return err
	}
	s.finishAction(ctx, schemas.ActionFill, sel, name, value)
	return nil
}

// SelectOption selects the option with the given value in a dropdown.
func (s *Session) SelectOption(ctx context.Context, sel, value, name string) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.page.SelectOption(ctx, sel, value); err != nil {
		return err
	}
	s.finishAction(ctx, schemas.ActionSelect, sel, name, value)
	return nil
}

// SetChecked forces the checked state of a checkbox or radio input.
func (s *Session) SetChecked(ctx context.Context, sel string, checked bool, name string) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.page.SetChecked(ctx, sel, checked); err != nil {
		return err
	}
	action := schemas.ActionCheck
	if !checked {
		action = schemas.ActionUncheck
	}
	s.finishAction(ctx, action, sel, name, "")
	return nil
}

// Hover moves the pointer over the first match.
func (s *Session) Hover(ctx context.Context, sel, name string) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.page.Hover(ctx, sel); err != nil {
		return err
	}
	s.finishAction(ctx, schemas.ActionHover, sel, name, "")
	return nil
}

// WaitForSelector blocks until the selector matches a visible node.
func (s *Session) WaitForSelector(ctx context.Context, sel string, timeout time.Duration) error {
	if err := s.page.WaitVisible(ctx, sel, timeout); err != nil {
		return err
	}
	s.record(schemas.TestStep{
		Action:   schemas.ActionWait,
		Selector: sel,
		Value:    timeout.String(),
	})
	return nil
}

// Assert evaluates the assertion against the live page and records it. A
// failed assertion is still recorded; the caller gets the mismatch as an
// error.
func (s *Session) Assert(ctx context.Context, sel string, assertion schemas.Assertion) error {
	ok, got, err := s.evaluateAssertion(ctx, sel, assertion)
	if err != nil {
		return err
	}

	a := assertion
	s.record(schemas.TestStep{
		Action:    schemas.ActionAssert,
		Selector:  sel,
		Assertion: &a,
	})

	if !ok {
		return fmt.Errorf("assertion %s on %q failed: got %q, want %q",
			assertion.Kind, sel, got, assertion.Expected)
	}
	return nil
}

func (s *Session) evaluateAssertion(ctx context.Context, sel string, a schemas.Assertion) (bool, string, error) {
	switch a.Kind {
	case schemas.AssertVisible:
		count, err := s.page.Count(ctx, sel)
		if err != nil {
			return false, "", err
		}
		return count > 0, strconv.Itoa(count), nil
	case schemas.AssertText:
		got, err := s.page.Text(ctx, sel)
		if err != nil {
			return false, "", err
		}
		return got == a.Expected, got, nil
	case schemas.AssertValue:
		got, err := s.page.Value(ctx, sel)
		if err != nil {
			return false, "", err
		}
		return got == a.Expected, got, nil
	case schemas.AssertCount:
		want, err := strconv.Atoi(a.Expected)
		if err != nil {
			return false, "", fmt.Errorf("count assertion needs a numeric expectation, got %q", a.Expected)
		}
		count, err := s.page.Count(ctx, sel)
		if err != nil {
			return false, "", err
		}
		return count == want, strconv.Itoa(count), nil
	case schemas.AssertURL:
		got, err := s.page.URL(ctx)
		if err != nil {
			return false, "", err
		}
		return got == a.Expected, got, nil
	case schemas.AssertTitle:
		got, err := s.page.Title(ctx)
		if err != nil {
			return false, "", err
		}
		return got == a.Expected, got, nil
	default:
		return false, "", fmt.Errorf("unknown assertion kind %q", a.Kind)
	}
}

// finishAction runs the post-action side effects: implicit mapping when a
// name was supplied for an unknown selector, step recording when armed, and
// a screenshot artifact. Side-effect failures are logged, never surfaced,
// the action itself already succeeded.
func (s *Session) finishAction(ctx context.Context, action schemas.StepAction, sel, name, value string) {
	s.mu.Lock()
	_, known := s.bySelector[sel]
	s.mu.Unlock()

	if !known && name != "" {
		if _, err := s.MapElement(ctx, sel, name); err != nil {
			s.logger.Warn("Implicit element mapping failed",
				zap.String("selector", sel),
				zap.String("name", name),
				zap.Error(err))
		}
	}

	step := schemas.TestStep{Action: action, Selector: sel, Value: value}
	s.mu.Lock()
	if id, ok := s.bySelector[sel]; ok {
		step.ElementID = id
		step.ElementName = s.mappings[id].Name
	}
	s.mu.Unlock()
	s.record(step)

	s.captureScreenshot(ctx)
}

func (s *Session) record(step schemas.TestStep) {
	if !s.recorder.Armed() {
		return
	}
	step.ID = uuid.NewString()
	step.Timestamp = time.Now().UTC()
	s.recorder.Record(step)
}

func (s *Session) captureScreenshot(ctx context.Context) {
	if s.sink == nil {
		return
	}
	data, err := s.page.Screenshot(ctx)
	if err != nil {
		s.logger.Warn("Screenshot capture failed", zap.Error(err))
		return
	}
	path, err := s.sink.SaveScreenshot(s.id, data)
	if err != nil {
		s.logger.Warn("Screenshot save failed", zap.Error(err))
		return
	}
	s.logger.Debug("Captured screenshot", zap.String("path", path))
}

// MapElement explicitly maps the first node matching the selector under the
// given name. The live node's attributes feed the selector resolver so the
// descriptor carries alternatives; the supplied selector stays primary since
// it demonstrably resolves. ErrSelectorUnresolvable when neither the caller
// nor the resolver can do better than a bare tag name.
func (s *Session) MapElement(ctx context.Context, sel, name string) (schemas.ElementDescriptor, error) {
	snap, err := s.page.Describe(ctx, sel)
	if err != nil {
		return schemas.ElementDescriptor{}, err
	}

	res := selector.Resolve(snap.Tag, snap.Attributes, snap.Text, selector.DocumentContext{})
	if res.Weak() && sel == snap.Tag {
		return schemas.ElementDescriptor{}, fmt.Errorf(
			"element %q has no distinguishing attributes: %w", sel, schemas.ErrSelectorUnresolvable)
	}

	alts := make([]string, 0, 3)
	if !res.Weak() && res.Primary != sel {
		alts = append(alts, res.Primary)
	}
	for _, alt := range res.Alternatives {
		if len(alts) == 3 {
			break
		}
		if alt != sel {
			alts = append(alts, alt)
		}
	}

	desc := schemas.ElementDescriptor{
		ID:                   uuid.NewString(),
		Name:                 name,
		PrimarySelector:      sel,
		AlternativeSelectors: alts,
		ElementType:          extractor.Classify(snap),
		Attributes:           snap.Attributes,
		TextSnapshot:         snap.Text,
		Ordinal:              snap.Ordinal,
		LastVerifiedAt:       time.Now().UTC(),
		IsStable:             true,
	}

	s.mu.Lock()
	pomID := s.currentPOM
	s.mu.Unlock()

	if pomID != "" {
		merged, err := s.store.MergeUpdate(ctx, pomID, []schemas.ElementDescriptor{desc})
		if err != nil {
			s.logger.Warn("Failed to merge mapped element into page object", zap.Error(err))
		} else if el := merged.FindElementBySelector(sel); el != nil {
			// The store may have renamed on collision; its copy wins.
			desc = el.Clone()
		}
	}

	s.mu.Lock()
	s.mappings[desc.ID] = desc
	s.bySelector[desc.PrimarySelector] = desc.ID
	s.mu.Unlock()

	s.logger.Debug("Mapped element",
		zap.String("name", desc.Name),
		zap.String("selector", desc.PrimarySelector))
	return desc, nil
}

// VerifyStability re-checks a mapped element against the live page. When the
// primary selector no longer resolves, the first resolving alternative is
// promoted to primary and the old primary demoted into the alternatives.
// Returns false without mutating anything when every selector fails.
func (s *Session) VerifyStability(ctx context.Context, elementID string) (bool, error) {
	s.mu.Lock()
	desc, ok := s.mappings[elementID]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("element %q is not mapped in this session: %w",
			elementID, schemas.ErrElementNotFound)
	}

	count, err := s.page.Count(ctx, desc.PrimarySelector)
	if err != nil {
		return false, err
	}
	if count > 0 {
		s.mu.Lock()
		d := s.mappings[elementID]
		d.LastVerifiedAt = time.Now().UTC()
		d.IsStable = true
		s.mappings[elementID] = d
		s.mu.Unlock()
		return true, nil
	}

	for i, alt := range desc.AlternativeSelectors {
		count, err := s.page.Count(ctx, alt)
		if err != nil {
			return false, err
		}
		if count == 0 {
			continue
		}

		s.mu.Lock()
		d := s.mappings[elementID]
		oldPrimary := d.PrimarySelector
		remaining := make([]string, 0, len(d.AlternativeSelectors))
		remaining = append(remaining, d.AlternativeSelectors[:i]...)
		remaining = append(remaining, d.AlternativeSelectors[i+1:]...)
		if len(remaining) < 3 {
			remaining = append(remaining, oldPrimary)
		}
		d.PrimarySelector = alt
		d.AlternativeSelectors = remaining
		d.LastVerifiedAt = time.Now().UTC()
		d.IsStable = true
		s.mappings[elementID] = d
		delete(s.bySelector, oldPrimary)
		s.bySelector[alt] = elementID
		s.mu.Unlock()

		s.logger.Info("Promoted alternative selector",
			zap.String("element", d.Name),
			zap.String("from", oldPrimary),
			zap.String("to", alt))
		return true, nil
	}
	return false, nil
}

// StartRecording opens a recording window, discarding any earlier steps.
func (s *Session) StartRecording() {
	s.recorder.Start()
	s.logger.Info("Recording started")
}

// StopRecording closes the recording window and synthesizes test source from
// the recorded steps. ErrNotRecording when no window is open.
func (s *Session) StopRecording(ctx context.Context) (string, error) {
	steps, err := s.recorder.Stop()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	pomID := s.currentPOM
	s.mu.Unlock()

	var pom *schemas.PageObject
	if pomID != "" {
		pom, _ = s.store.Get(pomID)
	}

	source := s.generator.GenerateTest(steps, pom)
	s.logger.Info("Recording stopped",
		zap.Int("steps", len(steps)),
		zap.Int("source_bytes", len(source)))

	if s.sink != nil {
		if pom != nil {
			if _, err := s.sink.SaveSource(pom.Name+".ts", s.generator.GeneratePageObject(pom)); err != nil {
				s.logger.Warn("Failed to save page object source", zap.Error(err))
			}
		}
		if _, err := s.sink.SaveSource("session-"+shortID(s.id)+".spec.ts", source); err != nil {
			s.logger.Warn("Failed to save test source", zap.Error(err))
		}
	}
	return source, nil
}

// Mappings returns a snapshot of the session's element mappings.
func (s *Session) Mappings() []schemas.ElementDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.ElementDescriptor, 0, len(s.mappings))
	for _, d := range s.mappings {
		out = append(out, d.Clone())
	}
	return out
}

// end releases the session's page. Idempotent; callers reach it through the
// manager, which guarantees the session id is gone before end runs.
func (s *Session) end(ctx context.Context) error {
	var err error
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.state = stateEnded
		s.mu.Unlock()
		err = s.page.Close(ctx)
		s.logger.Info("Session ended")
	})
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
