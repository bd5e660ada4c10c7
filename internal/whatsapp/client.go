// Package whatsapp is the client for the message transport gateway that
// actually delivers WhatsApp messages. Retry policy, if any, lives in the
// gateway; the engine treats every failure as final and demotes the task
// for manual follow-up.
package whatsapp

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

// Transport delivers an outbound message to a phone number.
type Transport interface {
	SendMessage(ctx context.Context, phone string, msg domain.Message) error
}

// HTTPTransport posts messages to the WhatsApp gateway.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPTransport creates a Transport over the gateway at baseURL.
func NewHTTPTransport(baseURL, token string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	Phone    string           `json:"phone"`
	Text     string           `json:"text"`
	Buttons  []domain.Button  `json:"buttons,omitempty"`
	ListRows []domain.ListRow `json:"list_rows,omitempty"`
}

func (t *HTTPTransport) SendMessage(ctx context.Context, phone string, msg domain.Message) error {
	ctx, span := otel.Tracer("whatsapp").Start(ctx, "transport.send_message")
	defer span.End()
	span.SetAttributes(attribute.String("message.phone", phone))

	body, err := json.Marshal(sendRequest{
		Phone:    phone,
		Text:     msg.Text,
		Buttons:  msg.Buttons,
		ListRows: msg.ListRows,
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway call failed")
		return fmt.Errorf("whatsapp gateway call: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("whatsapp gateway returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status code")
		return err
	}
	return nil
}

var _ Transport = (*HTTPTransport)(nil)
