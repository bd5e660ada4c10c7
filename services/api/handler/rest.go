// Package handler holds the REST surface of the follow-up API: the task
// worklist, event submission, sequence catalog administration and the
// cooldown setting.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/engine"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
	"github.com/nowhats-br/chatvendas-followup/pkg/telemetry"
)

// REST handles HTTP requests for the follow-up API.
type REST struct {
	engine    *engine.Engine
	sequences store.SequenceStore
	pool      *pgxpool.Pool
	logger    *slog.Logger
}

// NewREST creates a new REST handler.
func NewREST(eng *engine.Engine, sequences store.SequenceStore, pool *pgxpool.Pool, logger *slog.Logger) *REST {
	return &REST{engine: eng, sequences: sequences, pool: pool, logger: logger}
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

// CreateTaskRequest is the JSON body for POST /api/v1/tasks.
type CreateTaskRequest struct {
	ContactID string         `json:"contact_id"`
	Reason    string         `json:"reason"`
	Priority  string         `json:"priority,omitempty"`
	DueAt     *time.Time     `json:"due_at,omitempty"`
	Message   domain.Message `json:"message"`
	AutoSend  bool           `json:"auto_send"`
}

// CreateTask handles POST /api/v1/tasks.
func (h *REST) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("api").Start(r.Context(), "api.create_task")
	defer span.End()

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ContactID) == "" {
		writeError(w, http.StatusBadRequest, "field 'contact_id' is required")
		return
	}
	span.SetAttributes(attribute.String("contact.id", req.ContactID))

	in := engine.ManualTaskInput{
		ContactID: req.ContactID,
		Reason:    req.Reason,
		Priority:  domain.Priority(strings.ToUpper(req.Priority)),
		Message:   req.Message,
		AutoSend:  req.AutoSend,
	}
	if req.DueAt != nil {
		in.DueAt = *req.DueAt
	}

	task, err := h.engine.CreateManualTask(ctx, in)
	if err != nil {
		h.writeDomainError(w, r, err, "create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks handles GET /api/v1/tasks with optional status, kind, contact_id,
// due_before and limit query parameters.
func (h *REST) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		Status:    domain.Status(strings.ToUpper(q.Get("status"))),
		Kind:      domain.Kind(strings.ToUpper(q.Get("kind"))),
		ContactID: q.Get("contact_id"),
	}
	if raw := q.Get("due_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'due_before', expected RFC3339")
			return
		}
		f.DueBefore = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid 'limit'")
			return
		}
		f.Limit = n
	}

	tasks, err := h.engine.ListTasks(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, r, err, "list tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *REST) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err, "get task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type noteRequest struct {
	Note string `json:"note,omitempty"`
}

// CompleteTask handles POST /api/v1/tasks/{id}/complete.
func (h *REST) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body optional

	task, err := h.engine.CompleteTask(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		h.writeDomainError(w, r, err, "complete task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type snoozeRequest struct {
	Days int `json:"days"`
}

// SnoozeTask handles POST /api/v1/tasks/{id}/snooze.
func (h *REST) SnoozeTask(w http.ResponseWriter, r *http.Request) {
	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Days < 1 {
		writeError(w, http.StatusBadRequest, "field 'days' must be a positive integer")
		return
	}

	task, err := h.engine.SnoozeTask(r.Context(), chi.URLParam(r, "id"), req.Days)
	if err != nil {
		h.writeDomainError(w, r, err, "snooze task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// SkipTask handles POST /api/v1/tasks/{id}/skip.
func (h *REST) SkipTask(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	task, err := h.engine.SkipTask(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		h.writeDomainError(w, r, err, "skip task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Stats handles GET /api/v1/tasks/stats.
func (h *REST) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err, "stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ─── Events ─────────────────────────────────────────────────────────────────

// SubmitEvent handles POST /api/v1/events, the synchronous alternative to the
// Kafka topic for CRMs that cannot produce to a broker.
func (h *REST) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("api").Start(r.Context(), "api.submit_event")
	defer span.End()

	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.Type == "" || strings.TrimSpace(ev.ContactID) == "" {
		writeError(w, http.StatusBadRequest, "fields 'type' and 'contact_id' are required")
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	span.SetAttributes(
		attribute.String("event.type", string(ev.Type)),
		attribute.String("contact.id", ev.ContactID),
	)

	if err := h.engine.HandleEvent(ctx, &ev); err != nil {
		h.writeDomainError(w, r, err, "submit event")
		return
	}
	telemetry.APIEventsSubmitted.WithLabelValues(string(ev.Type)).Inc()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// TriggerScan handles POST /api/v1/scan, running an opportunity scan
// synchronously. Meant for operators; the scanner service covers the
// scheduled case.
func (h *REST) TriggerScan(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.ScanForOpportunities(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err, "scan")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ─── Sequence catalog ───────────────────────────────────────────────────────

// ListSequences handles GET /api/v1/sequences.
func (h *REST) ListSequences(w http.ResponseWriter, r *http.Request) {
	defs, err := h.sequences.ListDefinitions(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err, "list sequences")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sequences": defs})
}

// GetSequence handles GET /api/v1/sequences/{id}.
func (h *REST) GetSequence(w http.ResponseWriter, r *http.Request) {
	def, err := h.sequences.GetDefinition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err, "get sequence")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetSequenceActive handles PUT /api/v1/sequences/{id}/active.
func (h *REST) SetSequenceActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.sequences.SetActive(r.Context(), id, req.Active); err != nil {
		h.writeDomainError(w, r, err, "set sequence active")
		return
	}
	h.logger.Info("sequence toggled", slog.String("sequence_id", id), slog.Bool("active", req.Active))
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": req.Active})
}

// stepRequest carries one sequence step with a human-friendly delay.
type stepRequest struct {
	DelayDays float64 `json:"delay_days"`
	Archetype string  `json:"archetype"`
	Priority  string  `json:"priority"`
}

type updateStepsRequest struct {
	Steps []stepRequest `json:"steps"`
}

// UpdateSequenceSteps handles PUT /api/v1/sequences/{id}/steps. Running
// instances keep their already-created tasks; only future instantiations see
// the new steps.
func (h *REST) UpdateSequenceSteps(w http.ResponseWriter, r *http.Request) {
	var req updateStepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	steps, err := parseSteps(req.Steps)
	if err != nil {
		h.writeDomainError(w, r, err, "update sequence steps")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.sequences.UpdateSteps(r.Context(), id, steps); err != nil {
		h.writeDomainError(w, r, err, "update sequence steps")
		return
	}
	h.logger.Info("sequence steps updated", slog.String("sequence_id", id), slog.Int("steps", len(steps)))
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "steps": len(steps)})
}

func parseSteps(in []stepRequest) ([]domain.SequenceStep, error) {
	if len(in) == 0 {
		return nil, &domain.InvalidSequenceStepsError{Reason: "at least one step is required"}
	}
	steps := make([]domain.SequenceStep, 0, len(in))
	for i, s := range in {
		if s.DelayDays < 0 {
			return nil, &domain.InvalidSequenceStepsError{Reason: "delay_days must not be negative"}
		}
		if strings.TrimSpace(s.Archetype) == "" {
			return nil, &domain.InvalidSequenceStepsError{Reason: "archetype is required on every step"}
		}
		priority := domain.Priority(strings.ToUpper(s.Priority))
		switch priority {
		case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
		case "":
			priority = domain.PriorityMedium
		default:
			return nil, &domain.InvalidSequenceStepsError{Reason: "unknown priority on step " + strconv.Itoa(i)}
		}
		steps = append(steps, domain.SequenceStep{
			Delay:     time.Duration(s.DelayDays * 24 * float64(time.Hour)),
			Archetype: s.Archetype,
			Priority:  priority,
		})
	}
	return steps, nil
}

// ─── Cooldown ───────────────────────────────────────────────────────────────

type cooldownRequest struct {
	Days int `json:"days"`
}

// GetCooldown handles GET /api/v1/config/cooldown.
func (h *REST) GetCooldown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"days": h.engine.CooldownDays()})
}

// SetCooldown handles PUT /api/v1/config/cooldown.
func (h *REST) SetCooldown(w http.ResponseWriter, r *http.Request) {
	var req cooldownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.engine.SetCooldownDays(req.Days); err != nil {
		h.writeDomainError(w, r, err, "set cooldown")
		return
	}
	h.logger.Info("cooldown updated", slog.Int("days", req.Days))
	writeJSON(w, http.StatusOK, map[string]int{"days": req.Days})
}

// ─── Health ─────────────────────────────────────────────────────────────────

// Healthz handles GET /healthz.
func (h *REST) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Readyz handles GET /readyz — checks PostgreSQL connectivity.
func (h *REST) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "postgres not ready")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeDomainError maps typed domain errors to HTTP statuses.
func (h *REST) writeDomainError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var (
		taskNotFound    *domain.TaskNotFoundError
		contactNotFound *domain.ContactNotFoundError
		seqNotFound     *domain.SequenceNotFoundError
		illegal         *domain.IllegalTransitionError
		badCooldown     *domain.InvalidCooldownError
		badSteps        *domain.InvalidSequenceStepsError
	)
	switch {
	case errors.As(err, &taskNotFound), errors.As(err, &seqNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &contactNotFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &illegal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &badCooldown), errors.As(err, &badSteps):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
