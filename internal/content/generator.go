// Package content produces outbound message copy: an AI generation service
// when it cooperates, deterministic fallback templates when it doesn't.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
)

// Generator produces a message for an archetype and a context bag.
// Implementations may fail; callers recover with Fallback.
type Generator interface {
	Generate(ctx context.Context, archetype string, params map[string]any) (*domain.Message, error)
}

// HTTPGenerator calls the AI copywriting service.
type HTTPGenerator struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPGenerator creates a Generator over the AI service at baseURL.
func NewHTTPGenerator(baseURL, token string) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type generateRequest struct {
	Archetype string         `json:"archetype"`
	Params    map[string]any `json:"params"`
}

type generateResponse struct {
	Text     string           `json:"text"`
	Buttons  []domain.Button  `json:"buttons,omitempty"`
	ListRows []domain.ListRow `json:"list_rows,omitempty"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, archetype string, params map[string]any) (*domain.Message, error) {
	ctx, span := otel.Tracer("content").Start(ctx, "generator.generate")
	defer span.End()
	span.SetAttributes(attribute.String("message.archetype", archetype))

	body, err := json.Marshal(generateRequest{Archetype: archetype, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generator call failed")
		return nil, fmt.Errorf("generator call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("generator returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status code")
		return nil, err
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode generator response: %w", err)
	}
	if out.Text == "" {
		return nil, fmt.Errorf("generator returned empty text for archetype %q", archetype)
	}

	return &domain.Message{Text: out.Text, Buttons: out.Buttons, ListRows: out.ListRows}, nil
}

var _ Generator = (*HTTPGenerator)(nil)
