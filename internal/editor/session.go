package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mbd888/tariffdesk/internal/idgen"
	"github.com/mbd888/tariffdesk/internal/metrics"
	"github.com/mbd888/tariffdesk/internal/tariff"
)

// Loader supplies the normalized collection a new session starts from.
// Implementations report fetch failures by returning an empty collection.
type Loader interface {
	Load(ctx context.Context) tariff.Collection
}

// Session is one admin editing session. Stores hand out copies, so the
// timestamps on a returned Session are a snapshot; Editor is shared.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
	Editor    *Editor   `json:"-"`
}

// Store persists sessions for the lifetime of the process.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	ListIdle(ctx context.Context, before time.Time) ([]*Session, error)
	Count(ctx context.Context) (int, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastUsed = at
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) ListIdle(ctx context.Context, before time.Time) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var idle []*Session
	for _, s := range m.sessions {
		if s.LastUsed.Before(before) {
			cp := *s
			idle = append(idle, &cp)
		}
	}
	return idle, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// Manager opens, resolves and closes editing sessions.
type Manager struct {
	store  Store
	loader Loader
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager
func NewManager(store Store, loader Loader, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		loader: loader,
		logger: logger,
		now:    time.Now,
	}
}

// Open loads the current tariffs document into a fresh editor. A failed
// load leaves the session with an empty working collection.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	c := m.loader.Load(ctx)
	now := m.now()
	s := &Session{
		ID:        idgen.Session(),
		CreatedAt: now,
		LastUsed:  now,
		Editor:    New(c),
	}
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	m.syncGauge(ctx)
	m.logger.Info("editor session opened", "session_id", s.ID, "tariffs", len(c))
	return s, nil
}

// Get resolves a session and marks it as used. The returned snapshot
// already carries the new LastUsed.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if !idgen.ValidSession(id) {
		return nil, ErrSessionNotFound
	}
	if err := m.store.Touch(ctx, id, m.now()); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, id)
}

// Close discards a session and its working collection.
func (m *Manager) Close(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.syncGauge(ctx)
	m.logger.Info("editor session closed", "session_id", id)
	return nil
}

// EvictIdle closes sessions unused since before the cutoff and returns how
// many were removed.
func (m *Manager) EvictIdle(ctx context.Context, cutoff time.Time) (int, error) {
	idle, err := m.store.ListIdle(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range idle {
		if err := m.store.Delete(ctx, s.ID); err == nil {
			n++
		}
	}
	if n > 0 {
		m.syncGauge(ctx)
	}
	return n, nil
}

func (m *Manager) syncGauge(ctx context.Context) {
	if n, err := m.store.Count(ctx); err == nil {
		metrics.EditorSessionsActive.Set(float64(n))
	}
}
