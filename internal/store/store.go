// Package store defines the persistence contracts the engine operates on.
// The only hard requirement on implementations is atomic per-contact
// read-modify-write: sequence replacement (cancel-then-create) and status
// transitions must never interleave for the same contact.
package store

import (
	"context"
	"time"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

// Filter narrows ListTasks results. Zero values mean "no constraint".
type Filter struct {
	Status    domain.Status
	Kind      domain.Kind
	ContactID string
	DueBefore time.Time
	Limit     int
}

// Stats is the aggregate worklist summary exposed to the UI.
type Stats struct {
	Pending        int     `json:"pending"`
	Scheduled      int     `json:"scheduled"`
	CompletedToday int     `json:"completed_today"`
	HighPriority   int     `json:"high_priority"`
	// RecoveryPotentialValue sums the LTV carried in the context of open
	// opportunity tasks.
	RecoveryPotentialValue float64 `json:"recovery_potential_value"`
}

// Transition describes a compare-and-set status change. The store applies it
// only while the task's current status is in the allowed set; otherwise it
// returns domain.IllegalTransitionError so in-flight deliveries never
// overwrite a human action.
type Transition struct {
	To          domain.Status
	DueAt       *time.Time // set on snooze
	SentAt      *time.Time
	CompletedAt *time.Time
	ReasonCode  domain.ReasonCode
	Note        string // appended to task notes when non-empty
}

// TaskStore is the aggregate root the engine operates on.
type TaskStore interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// ListTasks returns tasks sorted by priority (high first) then due date
	// (earliest first).
	ListTasks(ctx context.Context, f Filter) ([]*domain.Task, error)

	// DueTasks returns scheduled tasks with due_at <= now, up to limit.
	// Ordering within a batch is unspecified.
	DueTasks(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error)

	// Apply performs a compare-and-set transition. from lists the statuses
	// the task may currently be in; a task in any other status yields
	// domain.IllegalTransitionError and no change.
	Apply(ctx context.Context, id string, from []domain.Status, tr Transition) (*domain.Task, error)

	// ReplaceSequence atomically skips all active tasks referencing
	// (contactID, trigger) and creates the given tasks in their place.
	// It returns how many prior steps were skipped.
	ReplaceSequence(ctx context.Context, contactID string, trigger domain.Trigger, tasks []*domain.Task) (int, error)

	// HasActiveTasks reports whether the contact has any pending or
	// scheduled task.
	HasActiveTasks(ctx context.Context, contactID string) (bool, error)

	// CompletedWithin reports whether the contact has a completed task with
	// completed_at strictly after since.
	CompletedWithin(ctx context.Context, contactID string, since time.Time) (bool, error)

	Stats(ctx context.Context, now time.Time) (Stats, error)
}

// SequenceStore persists sequence definitions.
type SequenceStore interface {
	ListDefinitions(ctx context.Context) ([]*domain.SequenceDefinition, error)
	GetDefinition(ctx context.Context, id string) (*domain.SequenceDefinition, error)

	// ActiveByTrigger returns the active definition for the trigger, or
	// domain.SequenceNotFoundError when none is active.
	ActiveByTrigger(ctx context.Context, trigger domain.Trigger) (*domain.SequenceDefinition, error)

	SaveDefinition(ctx context.Context, def *domain.SequenceDefinition) error
	SetActive(ctx context.Context, id string, active bool) error

	// UpdateSteps replaces the definition's steps and bumps its version.
	UpdateSteps(ctx context.Context, id string, steps []domain.SequenceStep) error
}
