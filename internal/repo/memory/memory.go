package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulsemon/internal/domain"
	"pulsemon/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.SettingsStore = (*Store)(nil)

// Store keeps targets, per-target bounded result logs and the settings
// singleton in memory. Result logs are trimmed to the retention cap on
// every append, never an unbounded slice.
type Store struct {
	mu        sync.RWMutex
	retention int
	targets   map[domain.TargetID]*domain.Target
	results   map[domain.TargetID][]domain.ProbeResult
	settings  *domain.Settings
	nextID    int64
}

func New(retention int) *Store {
	if retention < 1 {
		retention = domain.DefaultRetention
	}
	return &Store{
		retention: retention,
		targets:   make(map[domain.TargetID]*domain.Target),
		results:   make(map[domain.TargetID][]domain.ProbeResult),
	}
}

// ---- TargetStore ----

func (m *Store) Add(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) Update(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[t.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *t
	m.targets[t.ID] = &cp
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, *t)
	}
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Store) Delete(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.targets, id)
	return nil
}

// ---- ResultStore ----

func (m *Store) Append(ctx context.Context, r *domain.ProbeResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	log := append(m.results[r.TargetID], *r)
	if len(log) > m.retention {
		// drop oldest; copy so the backing array does not grow unbounded
		trimmed := make([]domain.ProbeResult, m.retention)
		copy(trimmed, log[len(log)-m.retention:])
		log = trimmed
	}
	m.results[r.TargetID] = log
	return nil
}

func (m *Store) Recent(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.results[id]
	if limit <= 0 || limit > len(log) {
		limit = len(log)
	}
	out := make([]domain.ProbeResult, 0, limit)
	for i := len(log) - 1; i >= len(log)-limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

func (m *Store) Since(ctx context.Context, id domain.TargetID, t time.Time) ([]domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ProbeResult
	for _, r := range m.results[id] {
		if !r.Timestamp.Before(t) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Store) Last(ctx context.Context, id domain.TargetID) (*domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	log := m.results[id]
	if len(log) == 0 {
		return nil, nil
	}
	cp := log[len(log)-1]
	return &cp, nil
}

func (m *Store) DeleteByTarget(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, id)
	return nil
}

// ---- SettingsStore ----

func (m *Store) Load(ctx context.Context) (*domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, nil
	}
	cp := *m.settings
	return &cp, nil
}

func (m *Store) Save(ctx context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}
