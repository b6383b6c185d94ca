package notify

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/legaldocflow/internal/models"
)

const (
	EventTypeCompleted = "com.legaldocflow.document.completed"
	EventTypeFailed    = "com.legaldocflow.document.failed"
	eventSource        = "//legaldocflow/ingestion"
)

// EventNotifier posts a CloudEvent to an HTTP sink for every finalized document.
type EventNotifier struct {
	client cloudevents.Client
	target string
}

func NewEventNotifier(target string) (*EventNotifier, error) {
	if target == "" {
		return nil, fmt.Errorf("event sink URL is required")
	}
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudevents client: %w", err)
	}
	return &EventNotifier{client: client, target: target}, nil
}

func (n *EventNotifier) DocumentFinalized(ctx context.Context, doc *models.Document) error {
	e := cloudevents.NewEvent()
	e.SetID(fmt.Sprintf("%s/%s", doc.ID, doc.Status))
	e.SetSource(eventSource)
	e.SetSubject(doc.ID)
	if doc.Status == models.StatusCompleted {
		e.SetType(EventTypeCompleted)
	} else {
		e.SetType(EventTypeFailed)
	}
	if doc.UpdatedAt != nil {
		e.SetTime(*doc.UpdatedAt)
	}
	if err := e.SetData(cloudevents.ApplicationJSON, models.NewDocumentFinalizedEvent(doc)); err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	result := n.client.Send(cloudevents.ContextWithTarget(ctx, n.target), e)
	if !cloudevents.IsACK(result) {
		return fmt.Errorf("failed to deliver %s for document %s: %w", e.Type(), doc.ID, result)
	}
	return nil
}
