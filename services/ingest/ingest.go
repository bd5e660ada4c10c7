// Package ingest consumes CRM business events from Kafka and feeds them to
// the engine's event adapters.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/engine"
	"github.com/nowhats-br/chatvendas-followup/internal/kafka"
	"github.com/nowhats-br/chatvendas-followup/pkg/telemetry"
)

// Ingester consumes crm.events and routes each event through the engine.
type Ingester struct {
	consumer kafka.Consumer
	engine   *engine.Engine
	logger   *slog.Logger
}

// NewIngester creates an Ingester over the given consumer and engine.
func NewIngester(consumer kafka.Consumer, eng *engine.Engine, logger *slog.Logger) *Ingester {
	return &Ingester{consumer: consumer, engine: eng, logger: logger}
}

// Run starts consuming. Blocks until ctx is cancelled.
func (i *Ingester) Run(ctx context.Context) error {
	return i.consumer.Subscribe(ctx, i.route)
}

// route handles one message. Returning an error skips the offset commit so
// the event is re-delivered; that is reserved for transient failures.
// Malformed payloads and events for unknown contacts are logged, counted and
// committed: re-delivering them can never succeed.
func (i *Ingester) route(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer("ingest").Start(ctx, "ingest.route")
	defer span.End()

	var ev domain.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		i.logger.Error("malformed event dropped",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed event")
		telemetry.IngestEvents.WithLabelValues("unknown", "malformed").Inc()
		return nil
	}
	if ev.ContactID == "" {
		i.logger.Error("event without contact id dropped",
			slog.String("type", string(ev.Type)),
			slog.Int64("offset", msg.Offset))
		span.SetStatus(codes.Error, "missing contact id")
		telemetry.IngestEvents.WithLabelValues(string(ev.Type), "malformed").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("event.type", string(ev.Type)),
		attribute.String("contact.id", ev.ContactID),
	)

	if err := i.engine.HandleEvent(ctx, &ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event handling failed")
		telemetry.IngestEvents.WithLabelValues(string(ev.Type), "error").Inc()
		// Transient failure (store, directory, Redis) — re-deliver.
		return err
	}

	telemetry.IngestEvents.WithLabelValues(string(ev.Type), "ok").Inc()
	i.logger.Info("event processed",
		slog.String("type", string(ev.Type)),
		slog.String("contact_id", ev.ContactID))
	return nil
}
