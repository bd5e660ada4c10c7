// Package contacts is the read-only client for the CRM's contact directory.
package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nowhats-br/chatvendas-followup/internal/domain"
	"github.com/nowhats-br/chatvendas-followup/pkg/retry"
)

// Directory serves contact snapshots. The engine never writes contacts.
type Directory interface {
	GetContact(ctx context.Context, id string) (*domain.ContactSnapshot, error)
	ListContacts(ctx context.Context) ([]*domain.ContactSnapshot, error)
}

// HTTPDirectory reads contacts from the CRM REST API.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates a Directory over the CRM API at baseURL.
func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *HTTPDirectory) GetContact(ctx context.Context, id string) (*domain.ContactSnapshot, error) {
	ctx, span := otel.Tracer("contacts").Start(ctx, "directory.get_contact")
	defer span.End()
	span.SetAttributes(attribute.String("contact.id", id))

	var contact domain.ContactSnapshot
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond}, func() error {
		return d.getJSON(ctx, d.baseURL+"/api/contacts/"+id, id, &contact)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get contact failed")
		return nil, err
	}
	return &contact, nil
}

func (d *HTTPDirectory) ListContacts(ctx context.Context) ([]*domain.ContactSnapshot, error) {
	ctx, span := otel.Tracer("contacts").Start(ctx, "directory.list_contacts")
	defer span.End()

	var contacts []*domain.ContactSnapshot
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond}, func() error {
		return d.getJSON(ctx, d.baseURL+"/api/contacts", "", &contacts)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list contacts failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("contacts.count", len(contacts)))
	return contacts, nil
}

func (d *HTTPDirectory) getJSON(ctx context.Context, url, contactID string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build directory request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory call to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &domain.ContactNotFoundError{ContactID: contactID}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("directory %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode directory response: %w", err)
	}
	return nil
}

var _ Directory = (*HTTPDirectory)(nil)
