package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/config"
	"github.com/xkilldash9x/pagesmith/internal/extractor"
	"github.com/xkilldash9x/pagesmith/internal/pagestore"
	"github.com/xkilldash9x/pagesmith/internal/synth"
)

// Manager owns the addressable session collection. Every public operation is
// keyed by session id; an ended or unknown id fails with ErrSessionNotFound.
// Independent sessions never contend with each other.
type Manager struct {
	logger    *zap.Logger
	cfg       *config.Config
	driver    schemas.Driver
	store     *pagestore.Store
	extract   *extractor.Extractor
	generator *synth.Generator
	sink      schemas.ArtifactSink

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(logger *zap.Logger, cfg *config.Config, driver schemas.Driver, store *pagestore.Store, sink schemas.ArtifactSink) *Manager {
	return &Manager{
		logger:    logger.Named("session"),
		cfg:       cfg,
		driver:    driver,
		store:     store,
		extract:   extractor.New(logger),
		generator: synth.New(logger, cfg.Synth),
		sink:      sink,
		sessions:  make(map[string]*Session),
	}
}

// Start allocates a fresh page and registers a new session for it.
func (m *Manager) Start(ctx context.Context) (string, error) {
	page, err := m.driver.NewPage(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to allocate page: %w", err)
	}

	id := uuid.NewString()
	var limiter *rate.Limiter
	if interval := m.cfg.Browser.ActionInterval; interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	s := &Session{
		id:         id,
		logger:     m.logger.With(zap.String("session_id", shortID(id))),
		page:       page,
		store:      m.store,
		extract:    m.extract,
		generator:  m.generator,
		sink:       m.sink,
		recorder:   NewRecorder(),
		limiter:    limiter,
		mappings:   make(map[string]schemas.ElementDescriptor),
		bySelector: make(map[string]string),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("Session started", zap.String("session_id", id))
	return id, nil
}

func (m *Manager) get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, schemas.ErrSessionNotFound)
	}
	return s, nil
}

func (m *Manager) Navigate(ctx context.Context, id, url string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.Navigate(ctx, url)
}

func (m *Manager) Click(ctx context.Context, id, sel, name string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.Click(ctx, sel, name)
}

func (m *Manager) Fill(ctx context.Context, id, sel, value, name string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.Fill(ctx, sel, value, name)
}

func (m *Manager) SelectOption(ctx context.Context, id, sel, value, name string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.SelectOption(ctx, sel, value, name)
}

func (m *Manager) SetChecked(ctx context.Context, id, sel string, checked bool, name string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.SetChecked(ctx, sel, checked, name)
}

func (m *Manager) Hover(ctx context.Context, id, sel, name string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.Hover(ctx, sel, name)
}

func (m *Manager) Assert(ctx context.Context, id, sel string, assertion schemas.Assertion) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.Assert(ctx, sel, assertion)
}

func (m *Manager) WaitForSelector(ctx context.Context, id, sel string, timeout time.Duration) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.WaitForSelector(ctx, sel, timeout)
}

func (m *Manager) MapElement(ctx context.Context, id, sel, name string) (schemas.ElementDescriptor, error) {
	s, err := m.get(id)
	if err != nil {
		return schemas.ElementDescriptor{}, err
	}
	return s.MapElement(ctx, sel, name)
}

func (m *Manager) VerifyStability(ctx context.Context, id, elementID string) (bool, error) {
	s, err := m.get(id)
	if err != nil {
		return false, err
	}
	return s.VerifyStability(ctx, elementID)
}

func (m *Manager) StartRecording(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.StartRecording()
	return nil
}

func (m *Manager) StopRecording(ctx context.Context, id string) (string, error) {
	s, err := m.get(id)
	if err != nil {
		return "", err
	}
	return s.StopRecording(ctx)
}

// End releases the session's resources and removes it from the collection.
// Ending is terminal: a second End, like any other call on the ended id,
// fails with ErrSessionNotFound.
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, schemas.ErrSessionNotFound)
	}
	return s.end(ctx)
}

// Shutdown ends every live session in parallel and closes the driver.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range live {
		g.Go(func() error {
			return s.end(gctx)
		})
	}
	endErr := g.Wait()

	if err := m.driver.Close(ctx); err != nil {
		return fmt.Errorf("driver close failed: %w", err)
	}
	return endErr
}
