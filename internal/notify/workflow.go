package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"

	"github.com/Lllllllleong/legaldocflow/internal/gcp"
	"github.com/Lllllllleong/legaldocflow/internal/models"
)

// ExecutionCreator is the part of the Workflows Executions client we use.
type ExecutionCreator interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
}

// WorkflowNotifier starts a Cloud Workflows execution per completed document.
type WorkflowNotifier struct {
	client ExecutionCreator
	parent string
}

func NewWorkflowNotifier(client ExecutionCreator, projectID, location, workflowID string) (*WorkflowNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("executions client is required")
	}
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("projectID, location and workflowID must be set")
	}
	return &WorkflowNotifier{client: client, parent: gcp.WorkflowParent(projectID, location, workflowID)}, nil
}

// DocumentFinalized only triggers the workflow for completed documents.
func (n *WorkflowNotifier) DocumentFinalized(ctx context.Context, doc *models.Document) error {
	if doc.Status != models.StatusCompleted {
		return nil
	}
	payload, err := json.Marshal(models.NewDocumentFinalizedEvent(doc))
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: n.parent,
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	exec, err := n.client.CreateExecution(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	slog.Info("Triggered workflow.", "documentId", doc.ID, "execution", exec.GetName())
	return nil
}
