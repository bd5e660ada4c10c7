package domain_test

import (
	"testing"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

func TestStatusConstants(t *testing.T) {
	tests := []struct {
		status domain.Status
		want   string
	}{
		{domain.StatusScheduled, "SCHEDULED"},
		{domain.StatusPending, "PENDING"},
		{domain.StatusCompleted, "COMPLETED"},
		{domain.StatusSkipped, "SKIPPED"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if string(tt.status) != tt.want {
				t.Errorf("Status value = %q, want %q", tt.status, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []domain.Status{domain.StatusCompleted, domain.StatusSkipped} {
		t.Run(string(s), func(t *testing.T) {
			if !s.IsTerminal() {
				t.Errorf("IsTerminal(%q) = false, want true", s)
			}
		})
	}
	for _, s := range []domain.Status{domain.StatusScheduled, domain.StatusPending} {
		t.Run(string(s), func(t *testing.T) {
			if s.IsTerminal() {
				t.Errorf("IsTerminal(%q) = true, want false", s)
			}
		})
	}
}

func TestIsActive(t *testing.T) {
	for _, s := range []domain.Status{domain.StatusScheduled, domain.StatusPending} {
		if !s.IsActive() {
			t.Errorf("IsActive(%q) = false, want true", s)
		}
	}
	for _, s := range []domain.Status{domain.StatusCompleted, domain.StatusSkipped} {
		if s.IsActive() {
			t.Errorf("IsActive(%q) = true, want false", s)
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from domain.Status
		to   domain.Status
		want bool
	}{
		{"scheduled to pending", domain.StatusScheduled, domain.StatusPending, true},
		{"scheduled to completed", domain.StatusScheduled, domain.StatusCompleted, true},
		{"scheduled to skipped", domain.StatusScheduled, domain.StatusSkipped, true},
		{"scheduled snooze", domain.StatusScheduled, domain.StatusScheduled, true},
		{"pending to completed", domain.StatusPending, domain.StatusCompleted, true},
		{"pending to skipped", domain.StatusPending, domain.StatusSkipped, true},
		{"pending snooze", domain.StatusPending, domain.StatusScheduled, true},
		{"completed is final", domain.StatusCompleted, domain.StatusPending, false},
		{"completed cannot snooze", domain.StatusCompleted, domain.StatusScheduled, false},
		{"skipped is final", domain.StatusSkipped, domain.StatusScheduled, false},
		{"pending cannot go back to pending", domain.StatusPending, domain.StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPriorityRank(t *testing.T) {
	if domain.PriorityHigh.Rank() <= domain.PriorityMedium.Rank() {
		t.Error("HIGH should outrank MEDIUM")
	}
	if domain.PriorityMedium.Rank() <= domain.PriorityLow.Rank() {
		t.Error("MEDIUM should outrank LOW")
	}
	if domain.Priority("BOGUS").Rank() != 0 {
		t.Error("unknown priority should rank 0")
	}
}

func TestContactFirstName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Maria Silva", "Maria"},
		{"João", "João"},
		{"", ""},
	}
	for _, tt := range tests {
		c := &domain.ContactSnapshot{Name: tt.name}
		if got := c.FirstName(); got != tt.want {
			t.Errorf("FirstName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestContactHasTag(t *testing.T) {
	c := &domain.ContactSnapshot{Tags: []string{"vip", "atacado"}}
	if !c.HasTag("vip") {
		t.Error("expected HasTag(vip) = true")
	}
	if c.HasTag("varejo") {
		t.Error("expected HasTag(varejo) = false")
	}
}
