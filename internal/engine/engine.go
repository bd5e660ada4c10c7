// Package engine implements the follow-up automation engine: sequence
// instantiation, the cooldown gate, opportunity scans, manual task
// operations and the event ingestion entry points.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nowhats-br/chatvendas-followup/internal/contacts"
	"github.com/nowhats-br/chatvendas-followup/internal/content"
	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	redisstore "github.com/nowhats-br/chatvendas-followup/internal/redis"
	"github.com/nowhats-br/chatvendas-followup/internal/rules"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
)

// DefaultCooldownDays is the initial cooldown window.
const DefaultCooldownDays = 7

// Engine coordinates the follow-up automation collaborators. All external
// dependencies are injected so tests can substitute them.
type Engine struct {
	tasks     store.TaskStore
	sequences store.SequenceStore
	directory contacts.Directory
	generator content.Generator
	pending   redisstore.PendingSaleStore // nil = sale context not tracked
	notifier  Notifier                    // nil = notifications disabled
	rules     *rules.Registry
	logger    *slog.Logger
	now       func() time.Time

	// autoSend is the delivery policy applied to sequences started by
	// ingested events. Manual instantiation chooses per call.
	autoSend bool

	mu           sync.RWMutex
	cooldownDays int
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option   { return func(e *Engine) { e.logger = l } }
func WithNotifier(n Notifier) Option     { return func(e *Engine) { e.notifier = n } }
func WithRules(r *rules.Registry) Option { return func(e *Engine) { e.rules = r } }
func WithCooldownDays(n int) Option      { return func(e *Engine) { e.cooldownDays = n } }

// WithPendingSales wires the Redis store that bridges sale and delivery events.
func WithPendingSales(p redisstore.PendingSaleStore) Option {
	return func(e *Engine) { e.pending = p }
}

// WithClock overrides the engine's time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithAutoSend sets the delivery policy for event-driven sequences.
func WithAutoSend(enabled bool) Option { return func(e *Engine) { e.autoSend = enabled } }

// New constructs an Engine with the given collaborators and options.
func New(
	tasks store.TaskStore,
	sequences store.SequenceStore,
	directory contacts.Directory,
	generator content.Generator,
	opts ...Option,
) *Engine {
	e := &Engine{
		tasks:        tasks,
		sequences:    sequences,
		directory:    directory,
		generator:    generator,
		rules:        rules.Defaults(),
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
		cooldownDays: DefaultCooldownDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetCooldownDays updates the cooldown window. Values outside 1–30 are
// rejected with InvalidCooldownError, never clamped.
func (e *Engine) SetCooldownDays(n int) error {
	if n < 1 || n > 30 {
		return &domain.InvalidCooldownError{Days: n}
	}
	e.mu.Lock()
	e.cooldownDays = n
	e.mu.Unlock()
	return nil
}

// CooldownDays returns the current cooldown window.
func (e *Engine) CooldownDays() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cooldownDays
}

// InCooldown reports whether the contact was contacted recently: a task
// completed within the cooldown window, or any task still pending or
// scheduled (queued work counts, to avoid pile-up). Only opportunity scans
// consult this gate; transactional sequence steps are never blocked by it.
func (e *Engine) InCooldown(ctx context.Context, contactID string) (bool, error) {
	since := e.now().AddDate(0, 0, -e.CooldownDays())
	recent, err := e.tasks.CompletedWithin(ctx, contactID, since)
	if err != nil {
		return false, err
	}
	if recent {
		return true, nil
	}
	return e.tasks.HasActiveTasks(ctx, contactID)
}
