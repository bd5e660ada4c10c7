package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
)

func newTask(id, contactID string, status domain.Status, dueAt time.Time) *domain.Task {
	return &domain.Task{
		ID:        id,
		ContactID: contactID,
		Kind:      domain.KindManual,
		Status:    status,
		Priority:  domain.PriorityMedium,
		DueAt:     dueAt,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func seqTask(id, contactID string, trigger domain.Trigger, status domain.Status) *domain.Task {
	t := newTask(id, contactID, status, time.Now().UTC())
	t.Kind = domain.KindSequenceStep
	t.SequenceRef = &domain.SequenceRef{InstanceID: "inst-" + id, Trigger: trigger, TotalSteps: 1}
	return t
}

func TestApply_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "c1", domain.StatusScheduled, time.Now())))

	now := time.Now().UTC()
	task, err := s.Apply(ctx, "t1",
		[]domain.Status{domain.StatusScheduled},
		store.Transition{To: domain.StatusCompleted, CompletedAt: &now})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
}

func TestApply_RejectsWhenStatusChanged(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "c1", domain.StatusPending, time.Now())))

	// The caller believes the task is still SCHEDULED; it is not.
	_, err := s.Apply(ctx, "t1",
		[]domain.Status{domain.StatusScheduled},
		store.Transition{To: domain.StatusCompleted})
	var illegal *domain.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, domain.StatusPending, illegal.From)

	// Task is untouched.
	task, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, task.Status)
}

func TestApply_RejectsTransitionsOutOfTerminalStates(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "c1", domain.StatusCompleted, time.Now())))

	_, err := s.Apply(ctx, "t1",
		[]domain.Status{domain.StatusCompleted},
		store.Transition{To: domain.StatusPending})
	var illegal *domain.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
}

func TestApply_UnknownTask(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.Apply(context.Background(), "nope",
		[]domain.Status{domain.StatusScheduled},
		store.Transition{To: domain.StatusPending})
	var notFound *domain.TaskNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestApply_AppendsNote(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.CreateTask(ctx, newTask("t1", "c1", domain.StatusScheduled, time.Now())))

	task, err := s.Apply(ctx, "t1",
		[]domain.Status{domain.StatusScheduled},
		store.Transition{
			To:         domain.StatusPending,
			ReasonCode: domain.ReasonDeliveryFailed,
			Note:       "falha no envio: timeout",
		})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonDeliveryFailed, task.ReasonCode)
	assert.Equal(t, []string{"falha no envio: timeout"}, task.Notes)
}

func TestReplaceSequence_SkipsOnlyActiveSameTrigger(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.CreateTask(ctx, seqTask("a1", "c1", domain.TriggerPostSale, domain.StatusScheduled)))
	require.NoError(t, s.CreateTask(ctx, seqTask("a2", "c1", domain.TriggerPostSale, domain.StatusPending)))
	require.NoError(t, s.CreateTask(ctx, seqTask("a3", "c1", domain.TriggerPostSale, domain.StatusCompleted)))
	require.NoError(t, s.CreateTask(ctx, seqTask("b1", "c1", domain.TriggerNurturing, domain.StatusScheduled)))
	require.NoError(t, s.CreateTask(ctx, seqTask("x1", "c2", domain.TriggerPostSale, domain.StatusScheduled)))

	skipped, err := s.ReplaceSequence(ctx, "c1", domain.TriggerPostSale,
		[]*domain.Task{seqTask("n1", "c1", domain.TriggerPostSale, domain.StatusScheduled)})
	require.NoError(t, err)
	assert.Equal(t, 2, skipped, "only the active post-sale steps of c1 are cancelled")

	for id, want := range map[string]domain.Status{
		"a1": domain.StatusSkipped,
		"a2": domain.StatusSkipped,
		"a3": domain.StatusCompleted, // history preserved
		"b1": domain.StatusScheduled, // other trigger untouched
		"x1": domain.StatusScheduled, // other contact untouched
		"n1": domain.StatusScheduled,
	} {
		task, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, task.Status, "task %s", id)
	}
}

func TestReplaceSequence_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	_, err := s.ReplaceSequence(ctx, "c1", domain.TriggerPostSale, []*domain.Task{
		seqTask("r1", "c1", domain.TriggerPostSale, domain.StatusScheduled),
		seqTask("r2", "c1", domain.TriggerPostSale, domain.StatusScheduled),
	})
	require.NoError(t, err)

	skipped, err := s.ReplaceSequence(ctx, "c1", domain.TriggerPostSale, []*domain.Task{
		seqTask("r3", "c1", domain.TriggerPostSale, domain.StatusScheduled),
		seqTask("r4", "c1", domain.TriggerPostSale, domain.StatusScheduled),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)

	active, err := s.ListTasks(ctx, store.Filter{ContactID: "c1", Status: domain.StatusScheduled})
	require.NoError(t, err)
	assert.Len(t, active, 2, "replay never yields duplicate in-flight steps")
}

func TestListTasks_Ordering(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	low := newTask("low", "c1", domain.StatusPending, base)
	low.Priority = domain.PriorityLow
	highLate := newTask("high-late", "c1", domain.StatusPending, base.Add(2*time.Hour))
	highLate.Priority = domain.PriorityHigh
	highEarly := newTask("high-early", "c1", domain.StatusPending, base.Add(time.Hour))
	highEarly.Priority = domain.PriorityHigh

	for _, task := range []*domain.Task{low, highLate, highEarly} {
		require.NoError(t, s.CreateTask(ctx, task))
	}

	out, err := s.ListTasks(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "high-early", out[0].ID)
	assert.Equal(t, "high-late", out[1].ID)
	assert.Equal(t, "low", out[2].ID)
}

func TestDueTasks_OnlyScheduledAndDue(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateTask(ctx, newTask("due", "c1", domain.StatusScheduled, now.Add(-time.Minute))))
	require.NoError(t, s.CreateTask(ctx, newTask("exact", "c1", domain.StatusScheduled, now)))
	require.NoError(t, s.CreateTask(ctx, newTask("future", "c1", domain.StatusScheduled, now.Add(time.Minute))))
	require.NoError(t, s.CreateTask(ctx, newTask("pending", "c1", domain.StatusPending, now.Add(-time.Hour))))

	due, err := s.DueTasks(ctx, now, 10)
	require.NoError(t, err)
	ids := make(map[string]bool)
	for _, task := range due {
		ids[task.ID] = true
	}
	assert.Equal(t, map[string]bool{"due": true, "exact": true}, ids)
}

func TestCompletedWithin_StrictBoundary(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	since := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	exactly := newTask("exact", "c1", domain.StatusCompleted, since)
	exactly.CompletedAt = &since
	require.NoError(t, s.CreateTask(ctx, exactly))

	got, err := s.CompletedWithin(ctx, "c1", since)
	require.NoError(t, err)
	assert.False(t, got, "completion exactly at the window edge no longer counts")

	after := since.Add(time.Second)
	recent := newTask("recent", "c1", domain.StatusCompleted, since)
	recent.CompletedAt = &after
	require.NoError(t, s.CreateTask(ctx, recent))

	got, err = s.CompletedWithin(ctx, "c1", since)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := time.Date(2026, 8, 1, 15, 0, 0, 0, time.UTC)

	p := newTask("p", "c1", domain.StatusPending, now)
	p.Priority = domain.PriorityHigh
	p.Kind = domain.KindOpportunity
	p.Context = map[string]any{"ltv": 2500.0}
	require.NoError(t, s.CreateTask(ctx, p))

	sch := newTask("s", "c2", domain.StatusScheduled, now)
	require.NoError(t, s.CreateTask(ctx, sch))

	doneToday := newTask("d1", "c3", domain.StatusCompleted, now)
	at := now.Add(-2 * time.Hour)
	doneToday.CompletedAt = &at
	require.NoError(t, s.CreateTask(ctx, doneToday))

	doneYesterday := newTask("d2", "c3", domain.StatusCompleted, now)
	yesterday := now.Add(-30 * time.Hour)
	doneYesterday.CompletedAt = &yesterday
	require.NoError(t, s.CreateTask(ctx, doneYesterday))

	stats, err := s.Stats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Scheduled)
	assert.Equal(t, 1, stats.CompletedToday)
	assert.Equal(t, 1, stats.HighPriority)
	assert.InDelta(t, 2500.0, stats.RecoveryPotentialValue, 0.001)
}

func TestSequenceStore_ActiveByTrigger(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.SaveDefinition(ctx, &domain.SequenceDefinition{
		ID:      "seq-1",
		Name:    "Pós-venda",
		Trigger: domain.TriggerPostSale,
		Steps:   []domain.SequenceStep{{Delay: 48 * time.Hour, Archetype: "satisfaction_check", Priority: domain.PriorityHigh}},
		Active:  true,
	}))

	def, err := s.ActiveByTrigger(ctx, domain.TriggerPostSale)
	require.NoError(t, err)
	assert.Equal(t, "seq-1", def.ID)

	_, err = s.ActiveByTrigger(ctx, domain.TriggerNurturing)
	var notFound *domain.SequenceNotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, s.SetActive(ctx, "seq-1", false))
	_, err = s.ActiveByTrigger(ctx, domain.TriggerPostSale)
	require.ErrorAs(t, err, &notFound)
}

func TestSequenceStore_UpdateStepsBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.SaveDefinition(ctx, &domain.SequenceDefinition{
		ID:      "seq-1",
		Trigger: domain.TriggerPostSale,
		Steps:   []domain.SequenceStep{{Archetype: "satisfaction_check"}},
		Active:  true,
	}))

	require.NoError(t, s.UpdateSteps(ctx, "seq-1", []domain.SequenceStep{
		{Delay: 24 * time.Hour, Archetype: "review_request", Priority: domain.PriorityMedium},
	}))

	def, err := s.GetDefinition(ctx, "seq-1")
	require.NoError(t, err)
	assert.Equal(t, 2, def.Version)
	require.Len(t, def.Steps, 1)
	assert.Equal(t, "review_request", def.Steps[0].Archetype)

	var notFound *domain.SequenceNotFoundError
	require.ErrorAs(t, s.UpdateSteps(ctx, "missing", nil), &notFound)
}
