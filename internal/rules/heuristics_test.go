package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

var now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := now.AddDate(0, 0, -n)
	return &t
}

func TestVIPRecovery(t *testing.T) {
	rule := &VIPRecovery{MinLTV: 1000, InactiveFor: 30 * 24 * time.Hour}

	p := rule.Evaluate(&domain.ContactSnapshot{LTV: 5000, LastPurchaseAt: daysAgo(45)}, now)
	require.NotNil(t, p)
	assert.Equal(t, "vip_recovery", p.Archetype)
	assert.Equal(t, domain.PriorityHigh, p.Priority)
	assert.Equal(t, 5000.0, p.Context["ltv"])

	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{LTV: 500, LastPurchaseAt: daysAgo(45)}, now),
		"LTV below threshold")
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{LTV: 5000, LastPurchaseAt: daysAgo(10)}, now),
		"recent buyer is not dormant")
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{LTV: 5000}, now),
		"never purchased")
}

func TestStalledDeal(t *testing.T) {
	rule := &StalledDeal{StuckFor: 7 * 24 * time.Hour}

	p := rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "negotiation", StageEnteredAt: daysAgo(10)}, now)
	require.NotNil(t, p)
	assert.Equal(t, "stalled_deal", p.Archetype)

	assert.NotNil(t, rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "proposal", StageEnteredAt: daysAgo(8)}, now))
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "negotiation", StageEnteredAt: daysAgo(3)}, now),
		"not stuck long enough")
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "lead", StageEnteredAt: daysAgo(30)}, now),
		"wrong stage")
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "negotiation"}, now),
		"no stage timestamp")
}

func TestColdLead(t *testing.T) {
	rule := &ColdLead{QuietFor: 14 * 24 * time.Hour}

	assert.NotNil(t, rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "lead", LastInteractionAt: daysAgo(20)}, now))
	assert.NotNil(t, rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "lead"}, now),
		"no interaction at all is cold")
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "lead", LastInteractionAt: daysAgo(2)}, now))
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{FunnelStage: "customer", LastInteractionAt: daysAgo(20)}, now))
}

func TestSatisfactionCheck(t *testing.T) {
	rule := &SatisfactionCheck{MinAge: 7 * 24 * time.Hour, MaxAge: 15 * 24 * time.Hour}

	assert.NotNil(t, rule.Evaluate(&domain.ContactSnapshot{LastPurchaseAt: daysAgo(10)}, now))
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{LastPurchaseAt: daysAgo(3)}, now), "too soon")
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{LastPurchaseAt: daysAgo(20)}, now), "window closed")
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{}, now))
}

func TestVIPAttention(t *testing.T) {
	rule := &VIPAttention{}

	p := rule.Evaluate(&domain.ContactSnapshot{Tags: []string{"vip"}}, now)
	require.NotNil(t, p)
	assert.Equal(t, domain.PriorityHigh, p.Priority)

	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{Tags: []string{"vip"}, PurchaseCount: 3}, now),
		"already a buyer")
	assert.Nil(t, rule.Evaluate(&domain.ContactSnapshot{Tags: []string{"atacado"}}, now),
		"not tagged vip")
}

func TestRegistryKeepsOrder(t *testing.T) {
	r := Defaults()
	kinds := make([]string, 0)
	for _, rule := range r.All() {
		kinds = append(kinds, rule.Kind())
	}
	assert.Equal(t, []string{"vip_recovery", "stalled_deal", "cold_lead", "satisfaction_check", "vip_attention"}, kinds)
}
