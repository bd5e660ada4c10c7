package domain

import "time"

// EventType identifies a CRM business event consumed by the engine.
type EventType string

const (
	EventSaleCompleted  EventType = "sale.completed"
	EventOrderDelivered EventType = "order.delivered"
	EventTicketClosed   EventType = "ticket.closed"
	EventStageChanged   EventType = "funnel.stage_changed"
)

// Event is the envelope published on the crm.events topic and accepted by
// the event submission endpoints. Fields beyond Type, ContactID and
// OccurredAt are event-specific and may be absent; adapters must tolerate
// partial context.
type Event struct {
	Type       EventType `json:"type"`
	ContactID  string    `json:"contact_id"`
	OccurredAt time.Time `json:"occurred_at"`

	OrderID   string  `json:"order_id,omitempty"`
	SaleValue float64 `json:"sale_value,omitempty"`
	Stage     string  `json:"stage,omitempty"`

	Context map[string]any `json:"context,omitempty"`
}
