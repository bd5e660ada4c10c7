// Package rules holds the pluggable heuristics the opportunity scan runs
// against every contact. Rules are independent: each sees the full contact
// snapshot and either proposes one task or stays silent.
package rules

import (
	"sync"
	"time"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

// Proposal is a rule's suggested outreach for a contact.
type Proposal struct {
	Archetype string
	Priority  domain.Priority
	Reason    string
	// Context is merged into the task context (e.g. ltv for the
	// recovery-potential stat).
	Context map[string]any
}

// Rule evaluates one heuristic against a contact.
// Returns nil when the rule does not apply.
type Rule interface {
	Kind() string
	Evaluate(c *domain.ContactSnapshot, now time.Time) *Proposal
}

// Registry keeps rules in registration order. The scan evaluates them in
// that order and deduplicates proposals by (contact, rule kind).
type Registry struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a rule. Safe to call concurrently.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
}

// All returns the registered rules in order.
func (r *Registry) All() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.rules...)
}

// Defaults returns a registry loaded with the standard heuristics.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(&VIPRecovery{MinLTV: 1000, InactiveFor: 30 * 24 * time.Hour})
	r.Register(&StalledDeal{StuckFor: 7 * 24 * time.Hour})
	r.Register(&ColdLead{QuietFor: 14 * 24 * time.Hour})
	r.Register(&SatisfactionCheck{MinAge: 7 * 24 * time.Hour, MaxAge: 15 * 24 * time.Hour})
	r.Register(&VIPAttention{})
	return r
}
