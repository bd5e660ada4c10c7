package domain

import "time"

// Trigger identifies the business event kind a sequence is bound to.
type Trigger string

const (
	// TriggerPostSale fires on order delivery, anchored at the delivery
	// timestamp (not the sale timestamp).
	TriggerPostSale Trigger = "post_sale"
	// TriggerNurturing is the long-horizon relationship sequence, anchored
	// at "now" since its purpose is unrelated to a specific order.
	TriggerNurturing Trigger = "nurturing"
)

// SequenceStep is one step of a sequence definition.
type SequenceStep struct {
	// Delay is added to the instantiation anchor to produce the task due date.
	Delay time.Duration `json:"delay"`
	// Archetype selects the message template requested from the content
	// generator, and the static fallback if generation fails.
	Archetype string   `json:"archetype"`
	Priority  Priority `json:"priority"`
}

// SequenceDefinition is a versioned template for a chain of follow-up tasks.
// Definitions are edited through configuration endpoints and read-only
// during instantiation.
type SequenceDefinition struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Trigger   Trigger        `json:"trigger"`
	Steps     []SequenceStep `json:"steps"`
	Active    bool           `json:"active"`
	Version   int            `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
}
