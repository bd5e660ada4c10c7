package domain

import "time"

// Status represents the states a follow-up task can be in.
type Status string

const (
	// StatusScheduled means the task has a future due date and is waiting
	// for the dispatcher to pick it up.
	StatusScheduled Status = "SCHEDULED"
	// StatusPending means the task is actionable now and waiting for a human.
	StatusPending Status = "PENDING"
	// StatusCompleted means the message was sent (or the operator resolved it).
	StatusCompleted Status = "COMPLETED"
	// StatusSkipped means the task was cancelled, usually because its
	// sequence instance was replaced by a newer one.
	StatusSkipped Status = "SKIPPED"
)

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// IsActive returns true for tasks still in flight. Active tasks are counted
// by the cooldown gate and cancelled on sequence replacement.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusScheduled
}

// CanTransitionTo reports whether moving from s to next is a legal step of
// the task state machine. Transitions are monotonic: the only way "back" is
// a snooze, which re-schedules a pending or scheduled task.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusScheduled:
		return next == StatusPending || next == StatusCompleted ||
			next == StatusSkipped || next == StatusScheduled // snooze
	case StatusPending:
		return next == StatusCompleted || next == StatusSkipped ||
			next == StatusScheduled // snooze
	default:
		return false
	}
}

// Kind classifies where a task came from.
type Kind string

const (
	KindManual       Kind = "MANUAL"
	KindOpportunity  Kind = "OPPORTUNITY"
	KindSequenceStep Kind = "SEQUENCE_STEP"
)

// Priority is an ordering hint for worklists. It never affects when a task
// becomes due.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Rank maps a priority to a sortable weight (higher = more urgent).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ReasonCode distinguishes why a task sits in the manual worklist.
type ReasonCode string

const (
	// ReasonAwaitingReview: the task became due with auto_send disabled.
	ReasonAwaitingReview ReasonCode = "AWAITING_REVIEW"
	// ReasonDeliveryFailed: automatic delivery was attempted and failed.
	ReasonDeliveryFailed ReasonCode = "DELIVERY_FAILED"
)

// Button is an interactive reply button attached to a WhatsApp message.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ListRow is one row of a WhatsApp list message.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Message is the proposed outbound content of a task.
type Message struct {
	Text     string    `json:"text"`
	Buttons  []Button  `json:"buttons,omitempty"`
	ListRows []ListRow `json:"list_rows,omitempty"`
}

// SequenceRef ties a task to the sequence instance that created it.
type SequenceRef struct {
	InstanceID string  `json:"instance_id"`
	Trigger    Trigger `json:"trigger"`
	StepIndex  int     `json:"step_index"`
	TotalSteps int     `json:"total_steps"`
}

// Task is the unit of scheduled outreach work.
//
// Contact fields are denormalized at creation time so worklists render the
// contact as it looked when the task fired, even if the CRM record changes.
type Task struct {
	ID string `json:"id"`

	ContactID     string `json:"contact_id"`
	ContactName   string `json:"contact_name"`
	ContactPhone  string `json:"contact_phone"`
	ContactAvatar string `json:"contact_avatar,omitempty"`

	Kind     Kind     `json:"kind"`
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`

	// DueAt is fixed at creation from the anchor time plus the step delay.
	// Only an explicit snooze may change it afterwards.
	DueAt time.Time `json:"due_at"`

	Reason     string     `json:"reason,omitempty"`
	ReasonCode ReasonCode `json:"reason_code,omitempty"`

	Message     Message        `json:"message"`
	SequenceRef *SequenceRef   `json:"sequence_ref,omitempty"`
	AutoSend    bool           `json:"auto_send"`
	Context     map[string]any `json:"context,omitempty"`
	Notes       []string       `json:"notes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
