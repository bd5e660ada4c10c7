package rules

import (
	"fmt"
	"time"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

// VIPRecovery flags high-LTV customers who stopped buying.
type VIPRecovery struct {
	MinLTV      float64
	InactiveFor time.Duration
}

func (r *VIPRecovery) Kind() string { return "vip_recovery" }

func (r *VIPRecovery) Evaluate(c *domain.ContactSnapshot, now time.Time) *Proposal {
	if c.LTV < r.MinLTV || c.LastPurchaseAt == nil {
		return nil
	}
	idle := now.Sub(*c.LastPurchaseAt)
	if idle <= r.InactiveFor {
		return nil
	}
	return &Proposal{
		Archetype: "vip_recovery",
		Priority:  domain.PriorityHigh,
		Reason: fmt.Sprintf("Cliente VIP (LTV R$ %.2f) sem comprar há %d dias",
			c.LTV, int(idle.Hours()/24)),
		Context: map[string]any{"ltv": c.LTV},
	}
}

// StalledDeal flags contacts stuck in negotiation or proposal stages.
type StalledDeal struct {
	StuckFor time.Duration
}

func (r *StalledDeal) Kind() string { return "stalled_deal" }

func (r *StalledDeal) Evaluate(c *domain.ContactSnapshot, now time.Time) *Proposal {
	if c.FunnelStage != "negotiation" && c.FunnelStage != "proposal" {
		return nil
	}
	if c.StageEnteredAt == nil || now.Sub(*c.StageEnteredAt) <= r.StuckFor {
		return nil
	}
	return &Proposal{
		Archetype: "stalled_deal",
		Priority:  domain.PriorityHigh,
		Reason: fmt.Sprintf("Negociação parada na etapa %q há %d dias",
			c.FunnelStage, int(now.Sub(*c.StageEnteredAt).Hours()/24)),
	}
}

// ColdLead flags leads with no interaction for a while.
type ColdLead struct {
	QuietFor time.Duration
}

func (r *ColdLead) Kind() string { return "cold_lead" }

func (r *ColdLead) Evaluate(c *domain.ContactSnapshot, now time.Time) *Proposal {
	if c.FunnelStage != "lead" {
		return nil
	}
	if c.LastInteractionAt != nil && now.Sub(*c.LastInteractionAt) <= r.QuietFor {
		return nil
	}
	return &Proposal{
		Archetype: "cold_lead",
		Priority:  domain.PriorityMedium,
		Reason:    "Lead sem interação recente",
	}
}

// SatisfactionCheck flags recent buyers in the 7–15 day satisfaction window.
type SatisfactionCheck struct {
	MinAge time.Duration
	MaxAge time.Duration
}

func (r *SatisfactionCheck) Kind() string { return "satisfaction_check" }

func (r *SatisfactionCheck) Evaluate(c *domain.ContactSnapshot, now time.Time) *Proposal {
	if c.LastPurchaseAt == nil {
		return nil
	}
	age := now.Sub(*c.LastPurchaseAt)
	if age < r.MinAge || age > r.MaxAge {
		return nil
	}
	return &Proposal{
		Archetype: "satisfaction_check",
		Priority:  domain.PriorityMedium,
		Reason: fmt.Sprintf("Compra realizada há %d dias, momento de checar satisfação",
			int(age.Hours()/24)),
	}
}

// VIPAttention flags contacts tagged VIP that never bought anything.
type VIPAttention struct{}

func (r *VIPAttention) Kind() string { return "vip_attention" }

func (r *VIPAttention) Evaluate(c *domain.ContactSnapshot, _ time.Time) *Proposal {
	if !c.HasTag("vip") || c.PurchaseCount > 0 {
		return nil
	}
	return &Proposal{
		Archetype: "vip_attention",
		Priority:  domain.PriorityHigh,
		Reason:    "Contato marcado como VIP ainda sem nenhuma compra",
	}
}
