package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type sentMessage struct {
	phone string
	text  string
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (t *fakeTransport) SendMessage(_ context.Context, phone string, msg domain.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, sentMessage{phone: phone, text: msg.Text})
	return nil
}

func (t *fakeTransport) calls() []sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentMessage(nil), t.sent...)
}

func dueTask(id string, autoSend bool) *domain.Task {
	return &domain.Task{
		ID:           id,
		ContactID:    "c1",
		ContactPhone: "+5511999990001",
		Kind:         domain.KindSequenceStep,
		Status:       domain.StatusScheduled,
		Priority:     domain.PriorityMedium,
		DueAt:        testNow.Add(-time.Minute),
		Message:      domain.Message{Text: "Olá, tudo bem com seu pedido?"},
		AutoSend:     autoSend,
		CreatedAt:    testNow.Add(-time.Hour),
		UpdatedAt:    testNow.Add(-time.Hour),
	}
}

func newDispatcher(mem *store.MemoryStore, transport *fakeTransport) *Dispatcher {
	return NewDispatcher(mem, transport,
		WithClock(func() time.Time { return testNow }),
		WithSendTimeout(time.Second),
	)
}

func TestTick_AutoSendDeliversAndCompletes(t *testing.T) {
	mem := store.NewMemoryStore()
	transport := &fakeTransport{}
	d := newDispatcher(mem, transport)
	ctx := context.Background()

	require.NoError(t, mem.CreateTask(ctx, dueTask("t1", true)))

	d.Tick(ctx)
	d.Wait()

	task, err := mem.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	require.NotNil(t, task.SentAt)
	assert.Equal(t, testNow, *task.SentAt)
	require.NotNil(t, task.CompletedAt)

	calls := transport.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "+5511999990001", calls[0].phone)
	assert.Equal(t, "Olá, tudo bem com seu pedido?", calls[0].text)
}

func TestTick_DeliveryFailureGoesToHuman(t *testing.T) {
	mem := store.NewMemoryStore()
	transport := &fakeTransport{err: errors.New("gateway timeout")}
	d := newDispatcher(mem, transport)
	ctx := context.Background()

	require.NoError(t, mem.CreateTask(ctx, dueTask("t1", true)))

	d.Tick(ctx)
	d.Wait()

	task, err := mem.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, task.Status, "failed delivery never retries automatically")
	assert.Equal(t, domain.ReasonDeliveryFailed, task.ReasonCode)
	assert.Nil(t, task.SentAt)
	require.Len(t, task.Notes, 1)
	assert.Contains(t, task.Notes[0], "falha no envio")
}

func TestTick_ManualTasksSurfaceWithoutSending(t *testing.T) {
	mem := store.NewMemoryStore()
	transport := &fakeTransport{}
	d := newDispatcher(mem, transport)
	ctx := context.Background()

	require.NoError(t, mem.CreateTask(ctx, dueTask("t1", false)))

	d.Tick(ctx)
	d.Wait()

	task, err := mem.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Equal(t, domain.ReasonAwaitingReview, task.ReasonCode)
	assert.Empty(t, transport.calls(), "review tasks never hit the transport")
}

func TestTick_FutureTasksAreLeftAlone(t *testing.T) {
	mem := store.NewMemoryStore()
	transport := &fakeTransport{}
	d := newDispatcher(mem, transport)
	ctx := context.Background()

	future := dueTask("t1", true)
	future.DueAt = testNow.Add(time.Hour)
	require.NoError(t, mem.CreateTask(ctx, future))

	d.Tick(ctx)
	d.Wait()

	task, _ := mem.GetTask(ctx, "t1")
	assert.Equal(t, domain.StatusScheduled, task.Status)
	assert.Empty(t, transport.calls())
}

func TestHandle_StaleTaskIsNotOverwritten(t *testing.T) {
	mem := store.NewMemoryStore()
	transport := &fakeTransport{}
	d := newDispatcher(mem, transport)
	ctx := context.Background()

	require.NoError(t, mem.CreateTask(ctx, dueTask("t1", true)))
	snapshot, err := mem.GetTask(ctx, "t1")
	require.NoError(t, err)

	// A human completes the task between the due query and the delivery.
	completedAt := testNow.Add(-time.Second)
	_, err = mem.Apply(ctx, "t1",
		[]domain.Status{domain.StatusScheduled},
		store.Transition{To: domain.StatusCompleted, CompletedAt: &completedAt, Note: "resolvido no balcão"})
	require.NoError(t, err)

	d.handle(ctx, snapshot)

	task, err := mem.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, completedAt, *task.CompletedAt, "the human's completion stands")
	assert.Nil(t, task.SentAt, "the in-flight delivery result is discarded")
}
