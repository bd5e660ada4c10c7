package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
	"github.com/nowhats-br/chatvendas-followup/pkg/telemetry"
)

// ManualTaskInput is the operator-supplied part of a manual task.
type ManualTaskInput struct {
	ContactID string
	Reason    string
	Priority  domain.Priority
	DueAt     time.Time
	Message   domain.Message
	AutoSend  bool
}

// CreateManualTask creates a single operator-authored task. Manual tasks
// bypass the cooldown gate: a human decided this outreach should happen.
func (e *Engine) CreateManualTask(ctx context.Context, in ManualTaskInput) (*domain.Task, error) {
	ctx, span := otel.Tracer("engine").Start(ctx, "engine.create_manual_task")
	defer span.End()
	span.SetAttributes(attribute.String("contact.id", in.ContactID))

	contact, err := e.directory.GetContact(ctx, in.ContactID)
	if err != nil {
		return nil, fmt.Errorf("create manual task: %w", err)
	}

	now := e.now()
	status := domain.StatusScheduled
	dueAt := in.DueAt
	if dueAt.IsZero() || !dueAt.After(now) {
		dueAt = now
		status = domain.StatusPending
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	task := &domain.Task{
		ID:            uuid.NewString(),
		ContactID:     contact.ID,
		ContactName:   contact.Name,
		ContactPhone:  contact.Phone,
		ContactAvatar: contact.AvatarURL,
		Kind:          domain.KindManual,
		Status:        status,
		Priority:      priority,
		DueAt:         dueAt,
		Reason:        in.Reason,
		Message:       in.Message,
		AutoSend:      in.AutoSend,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create manual task: %w", err)
	}

	telemetry.EngineTasksCreated.WithLabelValues(string(domain.KindManual)).Inc()
	e.logger.Info("manual task created",
		slog.String("task_id", task.ID),
		slog.String("contact_id", task.ContactID),
		slog.String("status", string(task.Status)))
	e.notifyCreated(ctx, []*domain.Task{task})
	return task, nil
}

// CompleteTask marks a pending or scheduled task as done by a human.
func (e *Engine) CompleteTask(ctx context.Context, id, note string) (*domain.Task, error) {
	now := e.now()
	task, err := e.tasks.Apply(ctx, id,
		[]domain.Status{domain.StatusPending, domain.StatusScheduled},
		store.Transition{
			To:          domain.StatusCompleted,
			CompletedAt: &now,
			Note:        note,
		})
	if err != nil {
		return nil, err
	}
	e.logger.Info("task completed", slog.String("task_id", id))
	return task, nil
}

// SnoozeTask pushes a task's due date days into the future from now (not
// from its previous due date) and returns it to SCHEDULED.
func (e *Engine) SnoozeTask(ctx context.Context, id string, days int) (*domain.Task, error) {
	if days < 1 {
		return nil, fmt.Errorf("snooze days must be positive, got %d", days)
	}
	dueAt := e.now().AddDate(0, 0, days)
	task, err := e.tasks.Apply(ctx, id,
		[]domain.Status{domain.StatusPending, domain.StatusScheduled},
		store.Transition{
			To:    domain.StatusScheduled,
			DueAt: &dueAt,
		})
	if err != nil {
		return nil, err
	}
	e.logger.Info("task snoozed",
		slog.String("task_id", id),
		slog.Int("days", days),
		slog.Time("due_at", dueAt))
	return task, nil
}

// SkipTask cancels a pending or scheduled task without sending anything.
func (e *Engine) SkipTask(ctx context.Context, id, note string) (*domain.Task, error) {
	task, err := e.tasks.Apply(ctx, id,
		[]domain.Status{domain.StatusPending, domain.StatusScheduled},
		store.Transition{
			To:   domain.StatusSkipped,
			Note: note,
		})
	if err != nil {
		return nil, err
	}
	e.logger.Info("task skipped", slog.String("task_id", id))
	return task, nil
}

// GetTask returns a single task by ID.
func (e *Engine) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return e.tasks.GetTask(ctx, id)
}

// ListTasks returns the filtered worklist, priority first, earliest due first.
func (e *Engine) ListTasks(ctx context.Context, f store.Filter) ([]*domain.Task, error) {
	return e.tasks.ListTasks(ctx, f)
}

// Stats returns the aggregate worklist summary.
func (e *Engine) Stats(ctx context.Context) (store.Stats, error) {
	return e.tasks.Stats(ctx, e.now())
}
