package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nowhats-br/chatvendas-followup/internal/content"
	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/pkg/telemetry"
)

// Instantiate creates a fresh instance of the active sequence for the
// trigger, cancelling any earlier active instance for the same (contact,
// trigger) pair first. Re-instantiation is therefore idempotent in effect:
// whatever happened before, the contact ends up with exactly the steps of the
// new instance.
//
// Due dates are anchored at anchor, not at the time of processing, so a
// delayed event does not shift the schedule: due_at is always anchor plus the
// step delay, even when that lies in the past. Overdue steps fire on the
// dispatcher's next tick.
//
// A trigger with no active sequence definition is a no-op, not an error:
// operators disable sequences on purpose.
func (e *Engine) Instantiate(
	ctx context.Context,
	trigger domain.Trigger,
	contactID string,
	anchor time.Time,
	saleCtx map[string]any,
	autoSend bool,
) ([]string, error) {
	ctx, span := otel.Tracer("engine").Start(ctx, "engine.instantiate")
	defer span.End()
	span.SetAttributes(
		attribute.String("sequence.trigger", string(trigger)),
		attribute.String("contact.id", contactID),
	)

	def, err := e.sequences.ActiveByTrigger(ctx, trigger)
	if err != nil {
		var notFound *domain.SequenceNotFoundError
		if errors.As(err, &notFound) {
			e.logger.Info("no active sequence for trigger, skipping",
				slog.String("trigger", string(trigger)),
				slog.String("contact_id", contactID))
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "load sequence definition failed")
		return nil, fmt.Errorf("load sequence for trigger %s: %w", trigger, err)
	}

	contact, err := e.directory.GetContact(ctx, contactID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "contact lookup failed")
		return nil, fmt.Errorf("instantiate %s for contact %s: %w", trigger, contactID, err)
	}

	now := e.now()
	instanceID := uuid.NewString()
	tasks := make([]*domain.Task, 0, len(def.Steps))
	for i, step := range def.Steps {
		tasks = append(tasks, &domain.Task{
			ID:            uuid.NewString(),
			ContactID:     contact.ID,
			ContactName:   contact.Name,
			ContactPhone:  contact.Phone,
			ContactAvatar: contact.AvatarURL,
			Kind:          domain.KindSequenceStep,
			Status:        domain.StatusScheduled,
			Priority:      step.Priority,
			DueAt:         anchor.Add(step.Delay),
			Reason:        fmt.Sprintf("Sequência %s, passo %d de %d", def.Name, i+1, len(def.Steps)),
			Message:       e.buildMessage(ctx, step.Archetype, contact, saleCtx),
			SequenceRef: &domain.SequenceRef{
				InstanceID: instanceID,
				Trigger:    trigger,
				StepIndex:  i,
				TotalSteps: len(def.Steps),
			},
			AutoSend:  autoSend,
			Context:   saleCtx,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	skipped, err := e.tasks.ReplaceSequence(ctx, contactID, trigger, tasks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace sequence failed")
		return nil, fmt.Errorf("replace %s sequence for contact %s: %w", trigger, contactID, err)
	}

	telemetry.EngineSequencesInstantiated.WithLabelValues(string(trigger)).Inc()
	telemetry.EngineStepsSkipped.WithLabelValues(string(trigger)).Add(float64(skipped))
	telemetry.EngineTasksCreated.WithLabelValues(string(domain.KindSequenceStep)).Add(float64(len(tasks)))
	span.SetAttributes(
		attribute.Int("sequence.steps", len(tasks)),
		attribute.Int("sequence.skipped", skipped),
	)
	e.logger.Info("sequence instantiated",
		slog.String("trigger", string(trigger)),
		slog.String("contact_id", contactID),
		slog.String("instance_id", instanceID),
		slog.Int("steps", len(tasks)),
		slog.Int("skipped", skipped))

	e.notifyCreated(ctx, tasks)

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids, nil
}

// buildMessage asks the generator for copy and falls back to the static
// template on any failure. Message content can never block task creation.
func (e *Engine) buildMessage(
	ctx context.Context,
	archetype string,
	contact *domain.ContactSnapshot,
	extra map[string]any,
) domain.Message {
	params := map[string]any{
		"contact_name": contact.Name,
		"first_name":   contact.FirstName(),
	}
	for k, v := range extra {
		params[k] = v
	}
	msg, err := e.generator.Generate(ctx, archetype, params)
	if err != nil {
		telemetry.EngineContentFallbacks.Inc()
		e.logger.Warn("content generation failed, using fallback template",
			slog.String("archetype", archetype),
			slog.String("contact_id", contact.ID),
			slog.String("error", err.Error()))
		return content.Fallback(archetype, contact.FirstName(), e.now())
	}
	return *msg
}
