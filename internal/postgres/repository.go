// Package postgres implements the store interfaces on top of pgx.
//
// Per-contact atomicity is provided by transactions plus conditional
// updates: ReplaceSequence runs cancel-then-create in one transaction, and
// Apply guards every transition with a status predicate so a row that left
// SCHEDULED while a delivery was in flight is never overwritten.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
)

// Store implements store.TaskStore and store.SequenceStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a pgxpool with the store interfaces.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

const taskColumns = `
	id, contact_id, contact_name, contact_phone, contact_avatar,
	kind, status, priority, due_at, reason, reason_code,
	message, sequence_ref, auto_send, context, notes,
	created_at, updated_at, sent_at, completed_at`

func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	msg, err := json.Marshal(task.Message)
	if err != nil {
		return fmt.Errorf("marshal message for task %s: %w", task.ID, err)
	}
	var ref []byte
	if task.SequenceRef != nil {
		if ref, err = json.Marshal(task.SequenceRef); err != nil {
			return fmt.Errorf("marshal sequence ref for task %s: %w", task.ID, err)
		}
	}
	ctxJSON, err := json.Marshal(task.Context)
	if err != nil {
		return fmt.Errorf("marshal context for task %s: %w", task.ID, err)
	}
	notes, err := json.Marshal(task.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes for task %s: %w", task.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO followup_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		task.ID, task.ContactID, task.ContactName, task.ContactPhone, task.ContactAvatar,
		string(task.Kind), string(task.Status), string(task.Priority),
		task.DueAt, task.Reason, string(task.ReasonCode),
		msg, ref, task.AutoSend, ctxJSON, notes,
		task.CreatedAt, task.UpdatedAt, task.SentAt, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create task %s: %w", task.ID, err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM followup_tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.TaskNotFoundError{TaskID: id}
		}
		return nil, err
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context, f store.Filter) ([]*domain.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM followup_tasks WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		q += ` AND status = ` + arg(string(f.Status))
	}
	if f.Kind != "" {
		q += ` AND kind = ` + arg(string(f.Kind))
	}
	if f.ContactID != "" {
		q += ` AND contact_id = ` + arg(f.ContactID)
	}
	if !f.DueBefore.IsZero() {
		q += ` AND due_at < ` + arg(f.DueBefore)
	}
	q += `
		ORDER BY CASE priority WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 ELSE 1 END DESC,
		         due_at ASC`
	if f.Limit > 0 {
		q += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *Store) DueTasks(ctx context.Context, now time.Time, limit int) ([]*domain.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM followup_tasks
		WHERE status = 'SCHEDULED' AND due_at <= $1
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *Store) Apply(ctx context.Context, id string, from []domain.Status, tr store.Transition) (*domain.Task, error) {
	fromStrs := make([]string, len(from))
	for i, st := range from {
		fromStrs[i] = string(st)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE followup_tasks
		SET status       = $1,
		    updated_at   = NOW(),
		    due_at       = COALESCE($2, due_at),
		    sent_at      = COALESCE($3, sent_at),
		    completed_at = COALESCE($4, completed_at),
		    reason_code  = CASE WHEN $5 <> '' THEN $5 ELSE reason_code END,
		    notes        = CASE WHEN $6 <> '' THEN notes || to_jsonb($6::text) ELSE notes END
		WHERE id = $7 AND status = ANY($8)
		RETURNING `+taskColumns+`
	`, string(tr.To), tr.DueAt, tr.SentAt, tr.CompletedAt,
		string(tr.ReasonCode), tr.Note, id, fromStrs)

	task, err := scanTask(row)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("apply transition on task %s: %w", id, err)
	}

	// No row matched: distinguish "missing" from "status moved on".
	var current string
	selErr := s.pool.QueryRow(ctx, `SELECT status FROM followup_tasks WHERE id = $1`, id).Scan(&current)
	if errors.Is(selErr, pgx.ErrNoRows) {
		return nil, &domain.TaskNotFoundError{TaskID: id}
	}
	if selErr != nil {
		return nil, fmt.Errorf("read status of task %s: %w", id, selErr)
	}
	return nil, &domain.IllegalTransitionError{TaskID: id, From: domain.Status(current), To: tr.To}
}

func (s *Store) ReplaceSequence(ctx context.Context, contactID string, trigger domain.Trigger, tasks []*domain.Task) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin replace sequence: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE followup_tasks
		SET status = 'SKIPPED', updated_at = NOW()
		WHERE contact_id = $1
		  AND sequence_ref->>'trigger' = $2
		  AND status IN ('PENDING', 'SCHEDULED')
	`, contactID, string(trigger))
	if err != nil {
		return 0, fmt.Errorf("skip active sequence %s/%s: %w", contactID, trigger, err)
	}
	skipped := int(tag.RowsAffected())

	for _, task := range tasks {
		msg, err := json.Marshal(task.Message)
		if err != nil {
			return 0, fmt.Errorf("marshal message for task %s: %w", task.ID, err)
		}
		ref, err := json.Marshal(task.SequenceRef)
		if err != nil {
			return 0, fmt.Errorf("marshal sequence ref for task %s: %w", task.ID, err)
		}
		ctxJSON, err := json.Marshal(task.Context)
		if err != nil {
			return 0, fmt.Errorf("marshal context for task %s: %w", task.ID, err)
		}
		notes, err := json.Marshal(task.Notes)
		if err != nil {
			return 0, fmt.Errorf("marshal notes for task %s: %w", task.ID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO followup_tasks (`+taskColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			        $12, $13, $14, $15, $16, $17, $18, $19, $20)
		`,
			task.ID, task.ContactID, task.ContactName, task.ContactPhone, task.ContactAvatar,
			string(task.Kind), string(task.Status), string(task.Priority),
			task.DueAt, task.Reason, string(task.ReasonCode),
			msg, ref, task.AutoSend, ctxJSON, notes,
			task.CreatedAt, task.UpdatedAt, task.SentAt, task.CompletedAt,
		); err != nil {
			return 0, fmt.Errorf("insert sequence task %s: %w", task.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit replace sequence: %w", err)
	}
	return skipped, nil
}

func (s *Store) HasActiveTasks(ctx context.Context, contactID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM followup_tasks
			WHERE contact_id = $1 AND status IN ('PENDING', 'SCHEDULED')
		)
	`, contactID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("active tasks for %s: %w", contactID, err)
	}
	return exists, nil
}

func (s *Store) CompletedWithin(ctx context.Context, contactID string, since time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM followup_tasks
			WHERE contact_id = $1 AND status = 'COMPLETED' AND completed_at > $2
		)
	`, contactID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("completed tasks for %s: %w", contactID, err)
	}
	return exists, nil
}

func (s *Store) Stats(ctx context.Context, now time.Time) (store.Stats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var st store.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'SCHEDULED'),
			COUNT(*) FILTER (WHERE status = 'COMPLETED' AND completed_at >= $1),
			COUNT(*) FILTER (WHERE status IN ('PENDING','SCHEDULED') AND priority = 'HIGH'),
			COALESCE(SUM((context->>'ltv')::float8) FILTER (
				WHERE status IN ('PENDING','SCHEDULED') AND kind = 'OPPORTUNITY'
				  AND context ? 'ltv'
			), 0)
		FROM followup_tasks
	`, dayStart).Scan(&st.Pending, &st.Scheduled, &st.CompletedToday, &st.HighPriority, &st.RecoveryPotentialValue)
	if err != nil {
		return store.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// scanTask reads a task row from any pgx row type.
func scanTask(row interface {
	Scan(...any) error
}) (*domain.Task, error) {
	var (
		task                          domain.Task
		kind, status, priority, rcode string
		msg, ref, ctxJSON, notes      []byte
	)
	err := row.Scan(
		&task.ID, &task.ContactID, &task.ContactName, &task.ContactPhone, &task.ContactAvatar,
		&kind, &status, &priority, &task.DueAt, &task.Reason, &rcode,
		&msg, &ref, &task.AutoSend, &ctxJSON, &notes,
		&task.CreatedAt, &task.UpdatedAt, &task.SentAt, &task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Kind = domain.Kind(kind)
	task.Status = domain.Status(status)
	task.Priority = domain.Priority(priority)
	task.ReasonCode = domain.ReasonCode(rcode)

	if err := json.Unmarshal(msg, &task.Message); err != nil {
		return nil, fmt.Errorf("unmarshal message for task %s: %w", task.ID, err)
	}
	if len(ref) > 0 && string(ref) != "null" {
		task.SequenceRef = &domain.SequenceRef{}
		if err := json.Unmarshal(ref, task.SequenceRef); err != nil {
			return nil, fmt.Errorf("unmarshal sequence ref for task %s: %w", task.ID, err)
		}
	}
	if len(ctxJSON) > 0 && string(ctxJSON) != "null" {
		if err := json.Unmarshal(ctxJSON, &task.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context for task %s: %w", task.ID, err)
		}
	}
	if len(notes) > 0 && string(notes) != "null" {
		if err := json.Unmarshal(notes, &task.Notes); err != nil {
			return nil, fmt.Errorf("unmarshal notes for task %s: %w", task.ID, err)
		}
	}
	return &task, nil
}

func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Compile-time interface checks.
var _ store.TaskStore = (*Store)(nil)
