package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Engine ──────────────────────────────────────────────────────────────────

	EngineTasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "engine",
		Name:      "tasks_created_total",
		Help:      "Total tasks created, labelled by kind.",
	}, []string{"kind"})

	EngineSequencesInstantiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "engine",
		Name:      "sequences_instantiated_total",
		Help:      "Total sequence instantiations, labelled by trigger.",
	}, []string{"trigger"})

	EngineStepsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "engine",
		Name:      "steps_skipped_total",
		Help:      "Prior sequence steps skipped on replacement, labelled by trigger.",
	}, []string{"trigger"})

	EngineContentFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "engine",
		Name:      "content_fallbacks_total",
		Help:      "Messages built from static fallback templates after generator failure.",
	})

	EngineCooldownSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "engine",
		Name:      "cooldown_skips_total",
		Help:      "Contacts skipped by an opportunity scan because of cooldown.",
	})

	EngineOpportunities = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "engine",
		Name:      "opportunities_total",
		Help:      "Opportunity tasks created by scans, labelled by rule.",
	}, []string{"rule"})

	// ─── Dispatcher ──────────────────────────────────────────────────────────────

	DispatcherDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "dispatcher",
		Name:      "tasks_dispatched_total",
		Help:      "Due tasks handled per tick, labelled by outcome (sent|failed|manual|stale).",
	}, []string{"outcome"})

	DispatcherInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "followup",
		Subsystem: "dispatcher",
		Name:      "deliveries_inflight",
		Help:      "Deliveries currently being attempted.",
	})

	DispatcherSendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "followup",
		Subsystem: "dispatcher",
		Name:      "send_duration_seconds",
		Help:      "WhatsApp delivery attempt time in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// ─── Ingestion ───────────────────────────────────────────────────────────────

	IngestEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "ingest",
		Name:      "events_total",
		Help:      "Business events consumed, labelled by type and outcome.",
	}, []string{"type", "outcome"})

	// ─── API ─────────────────────────────────────────────────────────────────────

	APIEventsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "followup",
		Subsystem: "api",
		Name:      "events_submitted_total",
		Help:      "Business events submitted through the REST API.",
	}, []string{"type"})
)
