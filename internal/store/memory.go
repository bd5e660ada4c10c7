package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

// MemoryStore is an in-memory TaskStore and SequenceStore. It backs tests
// and single-node development runs; production uses the Postgres store.
//
// Compound mutations take a per-contact lock so cancel-then-create sequence
// replacement cannot interleave with dispatcher transitions for the same
// contact, while different contacts proceed concurrently.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	defs  map[string]*domain.SequenceDefinition

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*domain.Task),
		defs:  make(map[string]*domain.SequenceDefinition),
		locks: make(map[string]*sync.Mutex),
	}
}

// contactLock returns the mutex guarding compound mutations for a contact.
func (m *MemoryStore) contactLock(contactID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[contactID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[contactID] = l
	}
	return l
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	if t.SequenceRef != nil {
		ref := *t.SequenceRef
		c.SequenceRef = &ref
	}
	if t.Context != nil {
		c.Context = make(map[string]any, len(t.Context))
		for k, v := range t.Context {
			c.Context[k] = v
		}
	}
	c.Notes = append([]string(nil), t.Notes...)
	return &c
}

func (m *MemoryStore) CreateTask(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = cloneTask(task)
	return nil
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, &domain.TaskNotFoundError{TaskID: id}
	}
	return cloneTask(t), nil
}

func matchesFilter(t *domain.Task, f Filter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.ContactID != "" && t.ContactID != f.ContactID {
		return false
	}
	if !f.DueBefore.IsZero() && !t.DueAt.Before(f.DueBefore) {
		return false
	}
	return true
}

func (m *MemoryStore) ListTasks(_ context.Context, f Filter) ([]*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Task
	for _, t := range m.tasks {
		if matchesFilter(t, f) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) DueTasks(_ context.Context, now time.Time, limit int) ([]*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Task
	for _, t := range m.tasks {
		if t.Status == domain.StatusScheduled && !t.DueAt.After(now) {
			out = append(out, cloneTask(t))
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) Apply(_ context.Context, id string, from []domain.Status, tr Transition) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, &domain.TaskNotFoundError{TaskID: id}
	}

	allowed := false
	for _, s := range from {
		if t.Status == s {
			allowed = true
			break
		}
	}
	if !allowed || !t.Status.CanTransitionTo(tr.To) {
		return nil, &domain.IllegalTransitionError{TaskID: id, From: t.Status, To: tr.To}
	}

	t.Status = tr.To
	t.UpdatedAt = time.Now().UTC()
	if tr.DueAt != nil {
		t.DueAt = *tr.DueAt
	}
	if tr.SentAt != nil {
		t.SentAt = tr.SentAt
	}
	if tr.CompletedAt != nil {
		t.CompletedAt = tr.CompletedAt
	}
	if tr.ReasonCode != "" {
		t.ReasonCode = tr.ReasonCode
	}
	if tr.Note != "" {
		t.Notes = append(t.Notes, tr.Note)
	}
	return cloneTask(t), nil
}

func (m *MemoryStore) ReplaceSequence(_ context.Context, contactID string, trigger domain.Trigger, tasks []*domain.Task) (int, error) {
	l := m.contactLock(contactID)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	skipped := 0
	for _, t := range m.tasks {
		if t.ContactID != contactID || t.SequenceRef == nil || t.SequenceRef.Trigger != trigger {
			continue
		}
		if t.Status.IsActive() {
			t.Status = domain.StatusSkipped
			t.UpdatedAt = time.Now().UTC()
			skipped++
		}
	}
	for _, t := range tasks {
		m.tasks[t.ID] = cloneTask(t)
	}
	return skipped, nil
}

func (m *MemoryStore) HasActiveTasks(_ context.Context, contactID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		if t.ContactID == contactID && t.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CompletedWithin(_ context.Context, contactID string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		if t.ContactID == contactID && t.Status == domain.StatusCompleted &&
			t.CompletedAt != nil && t.CompletedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var s Stats
	for _, t := range m.tasks {
		switch t.Status {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusScheduled:
			s.Scheduled++
		case domain.StatusCompleted:
			if t.CompletedAt != nil && !t.CompletedAt.Before(dayStart) {
				s.CompletedToday++
			}
		}
		if t.Status.IsActive() && t.Priority == domain.PriorityHigh {
			s.HighPriority++
		}
		if t.Status.IsActive() && t.Kind == domain.KindOpportunity {
			if ltv, ok := t.Context["ltv"].(float64); ok {
				s.RecoveryPotentialValue += ltv
			}
		}
	}
	return s, nil
}

// ─── SequenceStore ───────────────────────────────────────────────────────────

func cloneDef(d *domain.SequenceDefinition) *domain.SequenceDefinition {
	c := *d
	c.Steps = append([]domain.SequenceStep(nil), d.Steps...)
	return &c
}

func (m *MemoryStore) ListDefinitions(_ context.Context) ([]*domain.SequenceDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.SequenceDefinition, 0, len(m.defs))
	for _, d := range m.defs {
		out = append(out, cloneDef(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetDefinition(_ context.Context, id string) (*domain.SequenceDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.defs[id]
	if !ok {
		return nil, &domain.SequenceNotFoundError{SequenceID: id}
	}
	return cloneDef(d), nil
}

func (m *MemoryStore) ActiveByTrigger(_ context.Context, trigger domain.Trigger) (*domain.SequenceDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.defs {
		if d.Trigger == trigger && d.Active {
			return cloneDef(d), nil
		}
	}
	return nil, &domain.SequenceNotFoundError{Trigger: trigger}
}

func (m *MemoryStore) SaveDefinition(_ context.Context, def *domain.SequenceDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := cloneDef(def)
	if d.Version == 0 {
		d.Version = 1
	}
	d.UpdatedAt = time.Now().UTC()
	m.defs[d.ID] = d
	return nil
}

func (m *MemoryStore) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok {
		return &domain.SequenceNotFoundError{SequenceID: id}
	}
	d.Active = active
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) UpdateSteps(_ context.Context, id string, steps []domain.SequenceStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok {
		return &domain.SequenceNotFoundError{SequenceID: id}
	}
	d.Steps = append([]domain.SequenceStep(nil), steps...)
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// Compile-time interface checks.
var (
	_ TaskStore     = (*MemoryStore)(nil)
	_ SequenceStore = (*MemoryStore)(nil)
)
