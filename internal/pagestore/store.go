// Package pagestore is the shared repository of page object models. It is an
// explicit dependency handed to every session manager, never a process-wide
// singleton, so tests can substitute their own instance and several engines
// can coexist in one process.
//
// The merge policy is deliberately additive: elements observed once are never
// removed by a later extraction that misses them. The model favors recall
// over precision; stale descriptors are cleaned up only through the manual
// Prune operation.
package pagestore

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
)

// entry pairs a page object with its writer lock. Updates to different POMs
// never contend; updates to the same POM are serialized through mu.
type entry struct {
	mu      sync.Mutex
	pom     *schemas.PageObject
	pattern *regexp.Regexp
}

// Store holds page object models keyed by id, addressable by URL.
type Store struct {
	logger *zap.Logger
	repo   schemas.PageObjectRepository // optional persistence collaborator

	mu      sync.RWMutex // guards the maps, not the POM contents
	entries map[string]*entry
	byURL   map[string]string // exact URL -> POM id
	order   []string          // POM ids in creation order, for pattern fallback
}

// New creates a store. repo may be nil; persistence is optional.
func New(logger *zap.Logger, repo schemas.PageObjectRepository) *Store {
	return &Store{
		logger:  logger.Named("pagestore"),
		repo:    repo,
		entries: make(map[string]*entry),
		byURL:   make(map[string]string),
	}
}

// LoadFromRepository populates the store from the persistence collaborator.
// Called once at startup; a nil repository is a no-op.
func (s *Store) LoadFromRepository(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	poms, err := s.repo.LoadAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pom := range poms {
		s.entries[pom.ID] = &entry{pom: pom, pattern: compilePattern(pom.URLPattern, s.logger)}
		s.byURL[pom.URL] = pom.ID
		s.order = append(s.order, pom.ID)
	}
	s.logger.Info("Loaded page objects from repository", zap.Int("count", len(poms)))
	return nil
}

// FindByURL returns the POM whose URL matches exactly, else the first whose
// URL pattern matches, trying patterns in creation order. Returns a deep
// copy; concurrent merges never show through a returned model.
func (s *Store) FindByURL(url string) (*schemas.PageObject, bool) {
	s.mu.RLock()
	var found *entry
	if id, ok := s.byURL[url]; ok {
		found = s.entries[id]
	} else {
		for _, id := range s.order {
			if e := s.entries[id]; e.pattern != nil && e.pattern.MatchString(url) {
				found = e
				break
			}
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return nil, false
	}
	found.mu.Lock()
	defer found.mu.Unlock()
	return found.pom.Clone(), true
}

// Get returns a deep copy of the POM with the given id.
func (s *Store) Get(id string) (*schemas.PageObject, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pom.Clone(), true
}

// All returns deep copies of every stored POM in creation order, for listing
// and inspection.
func (s *Store) All() []*schemas.PageObject {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.entries[id])
	}
	s.mu.RUnlock()

	out := make([]*schemas.PageObject, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.pom.Clone())
		e.mu.Unlock()
	}
	return out
}

// CreateFromExtraction builds a brand-new POM at version 1 from a first
// visit and returns a deep copy of it.
func (s *Store) CreateFromExtraction(ctx context.Context, url, title string, elements []schemas.ElementDescriptor) *schemas.PageObject {
	pom := &schemas.PageObject{
		ID:            uuid.New().String(),
		Name:          DerivePageName(url, title),
		URL:           url,
		URLPattern:    DeriveURLPattern(url),
		Elements:      elements,
		Version:       1,
		LastUpdatedAt: time.Now().UTC(),
	}

	e := &entry{pom: pom, pattern: compilePattern(pom.URLPattern, s.logger)}
	s.mu.Lock()
	s.entries[pom.ID] = e
	s.byURL[url] = pom.ID
	s.order = append(s.order, pom.ID)
	s.mu.Unlock()

	s.logger.Info("Created page object",
		zap.String("pom_id", pom.ID),
		zap.String("name", pom.Name),
		zap.Int("elements", len(elements)))

	// The entry is published; merges may already be contending.
	e.mu.Lock()
	defer e.mu.Unlock()
	s.persist(ctx, pom)
	return pom.Clone()
}

// MergeUpdate folds a fresh extraction into an existing POM. Elements sharing
// a primary selector with an existing descriptor refresh its verification
// stamp; everything else is appended. Nothing is ever removed. The version
// counter increments on every call, even when the content is unchanged.
// Returns a deep copy of the merged model.
func (s *Store) MergeUpdate(ctx context.Context, pomID string, fresh []schemas.ElementDescriptor) (*schemas.PageObject, error) {
	s.mu.RLock()
	e, ok := s.entries[pomID]
	s.mu.RUnlock()
	if !ok {
		return nil, schemas.ErrPageObjectNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	// Index map rather than pointers: appends below may reallocate the slice.
	bySelector := make(map[string]int, len(e.pom.Elements))
	names := make(map[string]bool, len(e.pom.Elements))
	for i := range e.pom.Elements {
		if _, dup := bySelector[e.pom.Elements[i].PrimarySelector]; !dup {
			bySelector[e.pom.Elements[i].PrimarySelector] = i
		}
		names[e.pom.Elements[i].Name] = true
	}

	appended := 0
	for _, f := range fresh {
		if idx, ok := bySelector[f.PrimarySelector]; ok {
			e.pom.Elements[idx].LastVerifiedAt = now
			e.pom.Elements[idx].IsStable = true
			continue
		}
		f = f.Clone()
		f.Name = dedupeName(f.Name, names)
		names[f.Name] = true
		e.pom.Elements = append(e.pom.Elements, f)
		bySelector[f.PrimarySelector] = len(e.pom.Elements) - 1
		appended++
	}

	e.pom.Version++
	e.pom.LastUpdatedAt = now

	s.logger.Debug("Merged extraction into page object",
		zap.String("pom_id", pomID),
		zap.Int("fresh", len(fresh)),
		zap.Int("appended", appended),
		zap.Int("version", e.pom.Version))

	s.persist(ctx, e.pom)
	return e.pom.Clone(), nil
}

// Prune removes descriptors whose last successful verification is older than
// the cutoff. This is the only way elements ever leave a POM, and it is never
// invoked implicitly.
func (s *Store) Prune(ctx context.Context, pomID string, olderThan time.Time) (int, error) {
	s.mu.RLock()
	e, ok := s.entries[pomID]
	s.mu.RUnlock()
	if !ok {
		return 0, schemas.ErrPageObjectNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.pom.Elements[:0]
	removed := 0
	for _, el := range e.pom.Elements {
		if el.LastVerifiedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, el)
	}
	if removed == 0 {
		return 0, nil
	}

	e.pom.Elements = kept
	e.pom.Version++
	e.pom.LastUpdatedAt = time.Now().UTC()

	s.logger.Info("Pruned stale elements",
		zap.String("pom_id", pomID),
		zap.Int("removed", removed))

	s.persist(ctx, e.pom)
	return removed, nil
}

// persist hands the POM to the repository. Persistence failures are logged
// and swallowed: the in-memory model is authoritative for the running engine
// and a flaky database must not fail a navigation.
func (s *Store) persist(ctx context.Context, pom *schemas.PageObject) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, pom); err != nil {
		s.logger.Warn("Failed to persist page object",
			zap.String("pom_id", pom.ID),
			zap.Error(err))
	}
}

func compilePattern(pattern string, logger *zap.Logger) *regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		logger.Warn("Invalid URL pattern, exact matching only", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}
	return re
}

// dedupeName suffixes a name with a counter until it is unique in the POM.
func dedupeName(base string, taken map[string]bool) string {
	if base == "" {
		base = "element"
	}
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate
		}
	}
}
