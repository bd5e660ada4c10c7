package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

// Funnel stages that already mean "sold": moving into one of them starts the
// post-sale treatment even when the order events never arrived.
var soldStages = map[string]bool{
	"sold":      true,
	"won":       true,
	"delivered": true,
}

// HandleEvent routes a business event to its adapter. Unknown event types
// are dropped with a log line so a producer rolling out a new type does not
// wedge ingestion.
func (e *Engine) HandleEvent(ctx context.Context, ev *domain.Event) error {
	switch ev.Type {
	case domain.EventSaleCompleted:
		return e.HandleSaleCompleted(ctx, ev)
	case domain.EventOrderDelivered:
		return e.HandleOrderDelivered(ctx, ev)
	case domain.EventTicketClosed:
		return e.HandleTicketClosed(ctx, ev)
	case domain.EventStageChanged:
		return e.HandleStageChanged(ctx, ev)
	default:
		e.logger.Warn("unknown event type dropped",
			slog.String("type", string(ev.Type)),
			slog.String("contact_id", ev.ContactID))
		return nil
	}
}

// HandleSaleCompleted records the sale context and waits. The post-sale
// sequence only starts at delivery; asking "is everything ok with your
// order?" before the order arrives reads as tone-deaf.
func (e *Engine) HandleSaleCompleted(ctx context.Context, ev *domain.Event) error {
	if e.pending == nil {
		return nil
	}
	saleCtx := e.saleContext(ev)
	if err := e.pending.Record(ctx, ev.ContactID, saleCtx); err != nil {
		return fmt.Errorf("record sale for contact %s: %w", ev.ContactID, err)
	}
	e.logger.Info("sale recorded, awaiting delivery",
		slog.String("contact_id", ev.ContactID),
		slog.String("order_id", ev.OrderID))
	return nil
}

// HandleOrderDelivered starts the post-sale sequence anchored at the
// delivery time, enriched with the context recorded at sale time, and the
// nurturing sequence anchored at now.
//
// The recorded context is only deleted once both instantiations succeed, so
// a redelivered event after a transient failure still finds it.
func (e *Engine) HandleOrderDelivered(ctx context.Context, ev *domain.Event) error {
	saleCtx := e.saleContext(ev)
	if e.pending != nil {
		recorded, err := e.pending.Peek(ctx, ev.ContactID)
		if err != nil {
			e.logger.Warn("pending sale lookup failed, proceeding without it",
				slog.String("contact_id", ev.ContactID),
				slog.String("error", err.Error()))
		}
		for k, v := range recorded {
			if _, set := saleCtx[k]; !set {
				saleCtx[k] = v
			}
		}
	}

	if _, err := e.Instantiate(ctx, domain.TriggerPostSale, ev.ContactID, ev.OccurredAt, saleCtx, e.autoSend); err != nil {
		return e.dropIfContactUnknown(err, ev)
	}
	// Nurturing runs on its own long horizon, anchored at processing time.
	if _, err := e.Instantiate(ctx, domain.TriggerNurturing, ev.ContactID, e.now(), saleCtx, e.autoSend); err != nil {
		return e.dropIfContactUnknown(err, ev)
	}

	if e.pending != nil {
		if _, err := e.pending.Take(ctx, ev.ContactID); err != nil {
			e.logger.Warn("pending sale cleanup failed",
				slog.String("contact_id", ev.ContactID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// HandleTicketClosed treats a closed sale ticket like a completed sale:
// record context and wait for the delivery event.
func (e *Engine) HandleTicketClosed(ctx context.Context, ev *domain.Event) error {
	return e.HandleSaleCompleted(ctx, ev)
}

// HandleStageChanged starts the post-sale treatment when a contact moves
// into a sold stage. Sale context is best effort: whatever the event
// carries, topped up with a non-destructive peek at the recorded sale.
func (e *Engine) HandleStageChanged(ctx context.Context, ev *domain.Event) error {
	if !soldStages[ev.Stage] {
		return nil
	}
	saleCtx := e.saleContext(ev)
	if e.pending != nil {
		recorded, err := e.pending.Peek(ctx, ev.ContactID)
		if err != nil {
			e.logger.Warn("pending sale peek failed",
				slog.String("contact_id", ev.ContactID),
				slog.String("error", err.Error()))
		}
		for k, v := range recorded {
			if _, set := saleCtx[k]; !set {
				saleCtx[k] = v
			}
		}
	}
	if _, err := e.Instantiate(ctx, domain.TriggerPostSale, ev.ContactID, ev.OccurredAt, saleCtx, e.autoSend); err != nil {
		return e.dropIfContactUnknown(err, ev)
	}
	return nil
}

// saleContext assembles the context bag a sale-ish event carries.
func (e *Engine) saleContext(ev *domain.Event) map[string]any {
	saleCtx := make(map[string]any, len(ev.Context)+2)
	for k, v := range ev.Context {
		saleCtx[k] = v
	}
	if ev.OrderID != "" {
		saleCtx["order_id"] = ev.OrderID
	}
	if ev.SaleValue > 0 {
		saleCtx["sale_value"] = ev.SaleValue
	}
	return saleCtx
}

// dropIfContactUnknown converts a missing-contact error into a logged drop.
// The contact was deleted between the event and its processing; retrying
// cannot fix that.
func (e *Engine) dropIfContactUnknown(err error, ev *domain.Event) error {
	var notFound *domain.ContactNotFoundError
	if errors.As(err, &notFound) {
		e.logger.Warn("event references unknown contact, dropping",
			slog.String("type", string(ev.Type)),
			slog.String("contact_id", ev.ContactID))
		return nil
	}
	return err
}
