package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/internal/store"
)

// stepJSON is the persisted shape of a sequence step. Delay is stored in
// seconds so the column stays readable in psql.
type stepJSON struct {
	DelaySeconds int64  `json:"delay_seconds"`
	Archetype    string `json:"archetype"`
	Priority     string `json:"priority"`
}

func encodeSteps(steps []domain.SequenceStep) ([]byte, error) {
	out := make([]stepJSON, len(steps))
	for i, s := range steps {
		out[i] = stepJSON{
			DelaySeconds: int64(s.Delay / time.Second),
			Archetype:    s.Archetype,
			Priority:     string(s.Priority),
		}
	}
	return json.Marshal(out)
}

func decodeSteps(raw []byte) ([]domain.SequenceStep, error) {
	var in []stepJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]domain.SequenceStep, len(in))
	for i, s := range in {
		out[i] = domain.SequenceStep{
			Delay:     time.Duration(s.DelaySeconds) * time.Second,
			Archetype: s.Archetype,
			Priority:  domain.Priority(s.Priority),
		}
	}
	return out, nil
}

func scanDefinition(row interface {
	Scan(...any) error
}) (*domain.SequenceDefinition, error) {
	var (
		def     domain.SequenceDefinition
		trigger string
		steps   []byte
	)
	if err := row.Scan(&def.ID, &def.Name, &trigger, &steps, &def.Active, &def.Version, &def.UpdatedAt); err != nil {
		return nil, err
	}
	def.Trigger = domain.Trigger(trigger)
	decoded, err := decodeSteps(steps)
	if err != nil {
		return nil, fmt.Errorf("decode steps for sequence %s: %w", def.ID, err)
	}
	def.Steps = decoded
	return &def, nil
}

const defColumns = `id, name, trigger_kind, steps, active, version, updated_at`

func (s *Store) ListDefinitions(ctx context.Context) ([]*domain.SequenceDefinition, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+defColumns+` FROM sequence_definitions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sequence definitions: %w", err)
	}
	defer rows.Close()

	var defs []*domain.SequenceDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sequence definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *Store) GetDefinition(ctx context.Context, id string) (*domain.SequenceDefinition, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+defColumns+` FROM sequence_definitions WHERE id = $1`, id)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.SequenceNotFoundError{SequenceID: id}
		}
		return nil, err
	}
	return def, nil
}

func (s *Store) ActiveByTrigger(ctx context.Context, trigger domain.Trigger) (*domain.SequenceDefinition, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+defColumns+`
		FROM sequence_definitions
		WHERE trigger_kind = $1 AND active = TRUE
		ORDER BY version DESC
		LIMIT 1
	`, string(trigger))
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.SequenceNotFoundError{Trigger: trigger}
		}
		return nil, err
	}
	return def, nil
}

func (s *Store) SaveDefinition(ctx context.Context, def *domain.SequenceDefinition) error {
	steps, err := encodeSteps(def.Steps)
	if err != nil {
		return fmt.Errorf("encode steps for sequence %s: %w", def.ID, err)
	}
	version := def.Version
	if version == 0 {
		version = 1
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sequence_definitions (id, name, trigger_kind, steps, active, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, trigger_kind = EXCLUDED.trigger_kind, steps = EXCLUDED.steps,
		    active = EXCLUDED.active, version = sequence_definitions.version + 1,
		    updated_at = NOW()
	`, def.ID, def.Name, string(def.Trigger), steps, def.Active, version)
	if err != nil {
		return fmt.Errorf("save sequence definition %s: %w", def.ID, err)
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sequence_definitions SET active = $1, updated_at = NOW() WHERE id = $2
	`, active, id)
	if err != nil {
		return fmt.Errorf("toggle sequence %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.SequenceNotFoundError{SequenceID: id}
	}
	return nil
}

func (s *Store) UpdateSteps(ctx context.Context, id string, steps []domain.SequenceStep) error {
	encoded, err := encodeSteps(steps)
	if err != nil {
		return fmt.Errorf("encode steps for sequence %s: %w", id, err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE sequence_definitions
		SET steps = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
	`, encoded, id)
	if err != nil {
		return fmt.Errorf("update steps for sequence %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.SequenceNotFoundError{SequenceID: id}
	}
	return nil
}

var _ store.SequenceStore = (*Store)(nil)
