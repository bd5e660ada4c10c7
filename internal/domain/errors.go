package domain

import "fmt"

// TaskNotFoundError is returned when a task ID does not exist.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// ContactNotFoundError is returned when the contact directory has no record
// for the referenced contact. Ingestion adapters log and drop on this error.
type ContactNotFoundError struct {
	ContactID string
}

func (e *ContactNotFoundError) Error() string {
	return fmt.Sprintf("contact not found: %s", e.ContactID)
}

// SequenceNotFoundError is returned when no sequence definition matches an
// ID or no active definition exists for a trigger.
type SequenceNotFoundError struct {
	SequenceID string
	Trigger    Trigger
}

func (e *SequenceNotFoundError) Error() string {
	if e.SequenceID != "" {
		return fmt.Sprintf("sequence definition not found: %s", e.SequenceID)
	}
	return fmt.Sprintf("no active sequence definition for trigger %q", e.Trigger)
}

// InvalidCooldownError is returned when SetCooldownDays receives a value
// outside the 1–30 range. Out-of-range values are rejected, never clamped.
type InvalidCooldownError struct {
	Days int
}

func (e *InvalidCooldownError) Error() string {
	return fmt.Sprintf("cooldown days must be between 1 and 30, got %d", e.Days)
}

// InvalidSequenceStepsError is returned when a step update fails validation.
type InvalidSequenceStepsError struct {
	Reason string
}

func (e *InvalidSequenceStepsError) Error() string {
	return fmt.Sprintf("invalid sequence steps: %s", e.Reason)
}

// IllegalTransitionError is returned when a status transition violates the
// task state machine, including the optimistic check the dispatcher relies
// on: a task that left SCHEDULED while a delivery was in flight must not be
// overwritten.
type IllegalTransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("task %s: illegal transition %s -> %s", e.TaskID, e.From, e.To)
}
