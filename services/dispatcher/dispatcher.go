// Package dispatcher runs the tick loop that turns due scheduled tasks into
// sent messages or manual worklist entries.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
	"github.com/nowhats-br/chatvendas-followup/internal/whatsapp"
	"github.com/nowhats-br/chatvendas-followup/pkg/telemetry"
)

const (
	defaultTickInterval = 30 * time.Second
	defaultBatchSize    = 100
	defaultSendTimeout  = 20 * time.Second
)

// Dispatcher polls for due tasks and either delivers them over WhatsApp or
// demotes them to the manual worklist. Every transition it makes is a
// compare-and-set against SCHEDULED: a task a human touched while a delivery
// was in flight is left alone.
type Dispatcher struct {
	tasks     store.TaskStore
	transport whatsapp.Transport
	logger    *slog.Logger
	now       func() time.Time

	tickInterval time.Duration
	batchSize    int
	sendTimeout  time.Duration

	wg sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option         { return func(d *Dispatcher) { d.logger = l } }
func WithTickInterval(iv time.Duration) Option { return func(d *Dispatcher) { d.tickInterval = iv } }
func WithBatchSize(n int) Option               { return func(d *Dispatcher) { d.batchSize = n } }
func WithSendTimeout(t time.Duration) Option   { return func(d *Dispatcher) { d.sendTimeout = t } }
func WithClock(now func() time.Time) Option    { return func(d *Dispatcher) { d.now = now } }

// NewDispatcher creates a Dispatcher over the given store and transport.
func NewDispatcher(tasks store.TaskStore, transport whatsapp.Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tasks:        tasks,
		transport:    transport,
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
		tickInterval: defaultTickInterval,
		batchSize:    defaultBatchSize,
		sendTimeout:  defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run is the main polling loop. Blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	// Run once immediately before waiting for the first tick.
	d.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Wait blocks until all in-flight deliveries finish. Call after Run returns.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Tick processes one batch of due tasks. Tasks are independent; each is
// handled in its own goroutine and no ordering is guaranteed within a batch.
func (d *Dispatcher) Tick(ctx context.Context) {
	ctx, span := otel.Tracer("dispatcher").Start(ctx, "dispatcher.tick")
	defer span.End()

	due, err := d.tasks.DueTasks(ctx, d.now(), d.batchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load due tasks failed")
		d.logger.Error("load due tasks", slog.String("error", err.Error()))
		return
	}
	if len(due) == 0 {
		return
	}
	span.SetAttributes(attribute.Int("tick.due", len(due)))
	d.logger.Info("tick", slog.Int("due", len(due)))

	for _, task := range due {
		d.wg.Add(1)
		go func(task *domain.Task) {
			defer d.wg.Done()
			d.handle(ctx, task)
		}(task)
	}
}

func (d *Dispatcher) handle(ctx context.Context, task *domain.Task) {
	log := d.logger.With(
		slog.String("task_id", task.ID),
		slog.String("contact_id", task.ContactID),
	)

	if !task.AutoSend {
		// Surface in the manual worklist without attempting delivery.
		_, err := d.tasks.Apply(ctx, task.ID,
			[]domain.Status{domain.StatusScheduled},
			store.Transition{
				To:         domain.StatusPending,
				ReasonCode: domain.ReasonAwaitingReview,
			})
		d.finish(log, task, "manual", err)
		return
	}

	telemetry.DispatcherInFlight.Inc()
	defer telemetry.DispatcherInFlight.Dec()

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	start := d.now()
	sendErr := d.transport.SendMessage(sendCtx, task.ContactPhone, task.Message)
	cancel()
	telemetry.DispatcherSendDuration.Observe(time.Since(start).Seconds())

	if sendErr != nil {
		// Delivery failures are final: the task goes to a human, never back
		// into the automatic queue.
		_, err := d.tasks.Apply(ctx, task.ID,
			[]domain.Status{domain.StatusScheduled},
			store.Transition{
				To:         domain.StatusPending,
				ReasonCode: domain.ReasonDeliveryFailed,
				Note:       fmt.Sprintf("falha no envio: %v", sendErr),
			})
		d.finish(log.With(slog.String("send_error", sendErr.Error())), task, "failed", err)
		return
	}

	sentAt := d.now()
	_, err := d.tasks.Apply(ctx, task.ID,
		[]domain.Status{domain.StatusScheduled},
		store.Transition{
			To:          domain.StatusCompleted,
			SentAt:      &sentAt,
			CompletedAt: &sentAt,
		})
	d.finish(log, task, "sent", err)
}

// finish records the outcome of one task. A failed compare-and-set means the
// task changed under us (a human completed or snoozed it mid-flight); that is
// expected and counted as stale, not an error.
func (d *Dispatcher) finish(log *slog.Logger, task *domain.Task, outcome string, err error) {
	if err != nil {
		var illegal *domain.IllegalTransitionError
		if errors.As(err, &illegal) {
			telemetry.DispatcherDispatched.WithLabelValues("stale").Inc()
			log.Info("task changed mid-flight, leaving as is",
				slog.String("status", string(illegal.From)))
			return
		}
		log.Error("task transition failed",
			slog.String("outcome", outcome),
			slog.String("error", err.Error()))
		return
	}
	telemetry.DispatcherDispatched.WithLabelValues(outcome).Inc()
	log.Info("task dispatched", slog.String("outcome", outcome))
}
