package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/pkg/telemetry"
)

// ScanReport summarizes one opportunity scan run.
type ScanReport struct {
	Contacts   int      `json:"contacts"`
	InCooldown int      `json:"in_cooldown"`
	Created    int      `json:"created"`
	Errors     int      `json:"errors"`
	TaskIDs    []string `json:"task_ids,omitempty"`
}

// ScanForOpportunities walks the whole contact directory, applies the rule
// registry to each contact and creates one PENDING opportunity task per
// matching rule. The cooldown gate applies per contact, before any rule
// runs: a contact in cooldown produces nothing this scan, regardless of how
// many rules would match.
//
// Scans are best-effort per contact: an error on one contact is counted and
// logged, and the scan moves on.
func (e *Engine) ScanForOpportunities(ctx context.Context) (ScanReport, error) {
	ctx, span := otel.Tracer("engine").Start(ctx, "engine.scan_opportunities")
	defer span.End()

	var report ScanReport
	contacts, err := e.directory.ListContacts(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list contacts failed")
		return report, err
	}
	report.Contacts = len(contacts)

	now := e.now()
	for _, contact := range contacts {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		cooling, err := e.InCooldown(ctx, contact.ID)
		if err != nil {
			report.Errors++
			e.logger.Error("cooldown check failed",
				slog.String("contact_id", contact.ID),
				slog.String("error", err.Error()))
			continue
		}
		if cooling {
			report.InCooldown++
			telemetry.EngineCooldownSkips.Inc()
			continue
		}

		seen := make(map[string]bool)
		for _, rule := range e.rules.All() {
			if seen[rule.Kind()] {
				continue
			}
			proposal := rule.Evaluate(contact, now)
			if proposal == nil {
				continue
			}
			seen[rule.Kind()] = true

			task := &domain.Task{
				ID:            uuid.NewString(),
				ContactID:     contact.ID,
				ContactName:   contact.Name,
				ContactPhone:  contact.Phone,
				ContactAvatar: contact.AvatarURL,
				Kind:          domain.KindOpportunity,
				Status:        domain.StatusPending,
				Priority:      proposal.Priority,
				DueAt:         now,
				Reason:        proposal.Reason,
				Message:       e.buildMessage(ctx, proposal.Archetype, contact, proposal.Context),
				AutoSend:      false,
				Context:       proposal.Context,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := e.tasks.CreateTask(ctx, task); err != nil {
				report.Errors++
				e.logger.Error("opportunity task creation failed",
					slog.String("contact_id", contact.ID),
					slog.String("rule", rule.Kind()),
					slog.String("error", err.Error()))
				continue
			}
			report.Created++
			report.TaskIDs = append(report.TaskIDs, task.ID)
			telemetry.EngineOpportunities.WithLabelValues(rule.Kind()).Inc()
			telemetry.EngineTasksCreated.WithLabelValues(string(domain.KindOpportunity)).Inc()
			e.notifyCreated(ctx, []*domain.Task{task})
		}
	}

	span.SetAttributes(
		attribute.Int("scan.contacts", report.Contacts),
		attribute.Int("scan.created", report.Created),
		attribute.Int("scan.in_cooldown", report.InCooldown),
	)
	e.logger.Info("opportunity scan finished",
		slog.Int("contacts", report.Contacts),
		slog.Int("in_cooldown", report.InCooldown),
		slog.Int("created", report.Created),
		slog.Int("errors", report.Errors))
	return report, nil
}
