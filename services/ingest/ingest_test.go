package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/engine"
	"github.com/nowhats-br/chatvendas-followup/internal/kafka"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type fakeDirectory struct {
	contacts map[string]*domain.ContactSnapshot
	err      error
}

func (d *fakeDirectory) GetContact(_ context.Context, id string) (*domain.ContactSnapshot, error) {
	if d.err != nil {
		return nil, d.err
	}
	c, ok := d.contacts[id]
	if !ok {
		return nil, &domain.ContactNotFoundError{ContactID: id}
	}
	return c, nil
}

func (d *fakeDirectory) ListContacts(_ context.Context) ([]*domain.ContactSnapshot, error) {
	out := make([]*domain.ContactSnapshot, 0, len(d.contacts))
	for _, c := range d.contacts {
		out = append(out, c)
	}
	return out, nil
}

type fakeGenerator struct{}

func (fakeGenerator) Generate(_ context.Context, archetype string, _ map[string]any) (*domain.Message, error) {
	return &domain.Message{Text: "msg: " + archetype}, nil
}

type fakePending struct{ recorded map[string]map[string]any }

func (p *fakePending) Record(_ context.Context, contactID string, saleCtx map[string]any) error {
	p.recorded[contactID] = saleCtx
	return nil
}

func (p *fakePending) Peek(_ context.Context, contactID string) (map[string]any, error) {
	return p.recorded[contactID], nil
}

func (p *fakePending) Take(_ context.Context, contactID string) (map[string]any, error) {
	ctxMap := p.recorded[contactID]
	delete(p.recorded, contactID)
	return ctxMap, nil
}

type harness struct {
	ingester *Ingester
	store    *store.MemoryStore
	pending  *fakePending
	dir      *fakeDirectory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := store.NewMemoryStore()
	dir := &fakeDirectory{contacts: map[string]*domain.ContactSnapshot{
		"c1": {ID: "c1", Name: "Maria Silva", Phone: "+5511999990001"},
	}}
	pending := &fakePending{recorded: make(map[string]map[string]any)}
	eng := engine.New(mem, mem, dir, fakeGenerator{},
		engine.WithClock(func() time.Time { return testNow }),
		engine.WithPendingSales(pending),
	)
	require.NoError(t, mem.SaveDefinition(context.Background(), &domain.SequenceDefinition{
		ID:      "seq-pos-venda",
		Name:    "Pós-venda",
		Trigger: domain.TriggerPostSale,
		Steps: []domain.SequenceStep{
			{Delay: 2 * 24 * time.Hour, Archetype: "satisfaction_check", Priority: domain.PriorityHigh},
		},
		Active: true,
	}))
	return &harness{
		ingester: NewIngester(nil, eng, slog.Default()),
		store:    mem,
		pending:  pending,
		dir:      dir,
	}
}

func message(t *testing.T, ev *domain.Event) kafka.Message {
	t.Helper()
	value, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Topic: "crm.events", Value: value, Offset: 42}
}

func TestRoute_MalformedPayloadIsCommitted(t *testing.T) {
	h := newHarness(t)

	err := h.ingester.route(context.Background(), kafka.Message{Value: []byte("{not json"), Offset: 1})
	assert.NoError(t, err, "re-delivering garbage can never succeed")
}

func TestRoute_MissingContactIDIsCommitted(t *testing.T) {
	h := newHarness(t)

	err := h.ingester.route(context.Background(), message(t, &domain.Event{
		Type:       domain.EventSaleCompleted,
		OccurredAt: testNow,
	}))
	assert.NoError(t, err)
	assert.Empty(t, h.pending.recorded)
}

func TestRoute_SaleCompletedRecordsPendingContext(t *testing.T) {
	h := newHarness(t)

	err := h.ingester.route(context.Background(), message(t, &domain.Event{
		Type:       domain.EventSaleCompleted,
		ContactID:  "c1",
		OccurredAt: testNow,
		OrderID:    "order-9",
		SaleValue:  120,
	}))
	require.NoError(t, err)

	recorded := h.pending.recorded["c1"]
	require.NotNil(t, recorded)
	assert.Equal(t, "order-9", recorded["order_id"])

	tasks, _ := h.store.ListTasks(context.Background(), store.Filter{})
	assert.Empty(t, tasks, "sale alone starts nothing")
}

func TestRoute_OrderDeliveredStartsSequence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.ingester.route(ctx, message(t, &domain.Event{
		Type:       domain.EventSaleCompleted,
		ContactID:  "c1",
		OccurredAt: testNow.AddDate(0, 0, -2),
		OrderID:    "order-9",
	})))
	require.NoError(t, h.ingester.route(ctx, message(t, &domain.Event{
		Type:       domain.EventOrderDelivered,
		ContactID:  "c1",
		OccurredAt: testNow,
		OrderID:    "order-9",
	})))

	tasks, err := h.store.ListTasks(ctx, store.Filter{ContactID: "c1"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.StatusScheduled, tasks[0].Status)
	assert.Equal(t, "order-9", tasks[0].Context["order_id"])
}

func TestRoute_UnknownContactIsCommitted(t *testing.T) {
	h := newHarness(t)

	err := h.ingester.route(context.Background(), message(t, &domain.Event{
		Type:       domain.EventOrderDelivered,
		ContactID:  "ghost",
		OccurredAt: testNow,
	}))
	assert.NoError(t, err, "deleted contacts are dropped, not re-delivered")
}

func TestRoute_TransientFailureSkipsCommit(t *testing.T) {
	h := newHarness(t)
	h.dir.err = errors.New("directory unavailable")

	err := h.ingester.route(context.Background(), message(t, &domain.Event{
		Type:       domain.EventOrderDelivered,
		ContactID:  "c1",
		OccurredAt: testNow,
	}))
	assert.Error(t, err, "transient failures must be re-delivered")
}
