package domain

import "time"

// ContactSnapshot is the read-only view of a contact served by the CRM's
// contact directory. The engine never writes contacts.
type ContactSnapshot struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	FunnelStage    string     `json:"funnel_stage,omitempty"`
	StageEnteredAt *time.Time `json:"stage_entered_at,omitempty"`

	LTV               float64    `json:"ltv"`
	PurchaseCount     int        `json:"purchase_count"`
	LastPurchaseAt    *time.Time `json:"last_purchase_at,omitempty"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
}

// HasTag reports whether the contact carries the given tag (case-sensitive,
// the CRM normalizes tags on write).
func (c *ContactSnapshot) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FirstName returns the first word of the contact name, used by message
// templates. Empty names yield an empty string.
func (c *ContactSnapshot) FirstName() string {
	for i := 0; i < len(c.Name); i++ {
		if c.Name[i] == ' ' {
			return c.Name[:i]
		}
	}
	return c.Name
}
