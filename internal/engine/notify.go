package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/kafka"
)

// Notifier announces newly created tasks to interested observers (UI feeds,
// audit consumers). Notifications are fire-and-forget: a failed notification
// never fails or rolls back the task creation it announces.
type Notifier interface {
	TasksCreated(ctx context.Context, tasks []*domain.Task) error
}

// KafkaNotifier publishes task-created notifications to Kafka, keyed by
// contact ID so observers see a contact's tasks in order.
type KafkaNotifier struct {
	producer kafka.Producer
}

// NewKafkaNotifier creates a Notifier over the given producer.
func NewKafkaNotifier(p kafka.Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: p}
}

type taskCreatedNotice struct {
	TaskID    string          `json:"task_id"`
	ContactID string          `json:"contact_id"`
	Kind      domain.Kind     `json:"kind"`
	Status    domain.Status   `json:"status"`
	Priority  domain.Priority `json:"priority"`
	DueAt     time.Time       `json:"due_at"`
	CreatedAt time.Time       `json:"created_at"`
}

func (n *KafkaNotifier) TasksCreated(ctx context.Context, tasks []*domain.Task) error {
	for _, t := range tasks {
		value, err := json.Marshal(taskCreatedNotice{
			TaskID:    t.ID,
			ContactID: t.ContactID,
			Kind:      t.Kind,
			Status:    t.Status,
			Priority:  t.Priority,
			DueAt:     t.DueAt,
			CreatedAt: t.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal task notice for %s: %w", t.ID, err)
		}
		if err := n.producer.Publish(ctx, kafka.TopicTasksCreated, t.ContactID, value); err != nil {
			return err
		}
	}
	return nil
}

var _ Notifier = (*KafkaNotifier)(nil)

// notifyCreated fans the notification out on a detached context so a slow or
// unreachable broker never blocks the caller.
func (e *Engine) notifyCreated(ctx context.Context, tasks []*domain.Task) {
	if e.notifier == nil || len(tasks) == 0 {
		return
	}
	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := e.notifier.TasksCreated(ctx, tasks); err != nil {
			e.logger.Warn("task-created notification failed",
				slog.Int("tasks", len(tasks)),
				slog.String("error", err.Error()))
		}
	}(context.WithoutCancel(ctx))
}
