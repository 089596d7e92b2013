package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/pkg/activity"
	"github.com/oakgrove/gradepipe/pkg/events"
)

// EventEmitter publishes recognition lifecycle events. Emission is
// best-effort; failures are logged and never fail the activity.
type EventEmitter struct{ base activity.BaseActivities }

// NewEventEmitter creates an emitter over the base activity infrastructure.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitArtifactIngested announces that an artifact was split and is entering
// page recognition.
func (e *EventEmitter) EmitArtifactIngested(ctx context.Context, artifact *domain.UploadedArtifact, pageCount int, traceID string) {
	payload, err := json.Marshal(map[string]any{
		"artifactId": artifact.ID,
		"examId":     artifact.ExamID,
		"pageCount":  pageCount,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal ArtifactIngested payload", "error", err)
		return
	}

	wfCtx := e.base.GetWorkflowContext(ctx)
	e.base.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.New().String(),
		Type:           "recognition.artifact_ingested",
		Source:         "recognition-activity",
		Version:        "1.0.0",
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: fmt.Sprintf("ingested:%s", artifact.ID),
		InstitutionID:  artifact.InstitutionID,
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		TraceID:        traceID,
		Payload:        payload,
	}, "ArtifactIngested")
}

// EmitPageRecognized announces a stored page recognition result.
func (e *EventEmitter) EmitPageRecognized(ctx context.Context, page *domain.PageRecognitionResult, traceID string) {
	payload, err := json.Marshal(map[string]any{
		"artifactId": page.ArtifactID,
		"pageNumber": page.PageNumber,
		"confidence": page.Confidence,
		"flags":      page.QualityFlags,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal PageRecognized payload", "error", err)
		return
	}

	wfCtx := e.base.GetWorkflowContext(ctx)
	e.base.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.New().String(),
		Type:           "recognition.page_recognized",
		Source:         "recognition-activity",
		Version:        "1.0.0",
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: fmt.Sprintf("page:%s:%d", page.ArtifactID, page.PageNumber),
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		TraceID:        traceID,
		Payload:        payload,
	}, "PageRecognized")
}
