package evaluation

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

// EventEmitter publishes evaluation lifecycle events. Emission is
// best-effort; failures are logged and never fail the activity.
type EventEmitter struct{ base activity.BaseActivities }

// NewEventEmitter creates an emitter over the base activity infrastructure.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitQuestionEvaluated announces a persisted evaluation record.
func (e *EventEmitter) EmitQuestionEvaluated(ctx context.Context, rec *domain.EvaluationRecord, traceID string) {
	payload, err := json.Marshal(map[string]any{
		"scriptId":             rec.ScriptID,
		"questionId":           rec.QuestionID,
		"totalScore":           rec.TotalScore,
		"maxPossibleScore":     rec.MaxPossibleScore,
		"reviewRecommendation": rec.ReviewRecommendation,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal QuestionEvaluated payload", "error", err)
		return
	}

	wfCtx := e.base.GetWorkflowContext(ctx)
	e.base.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.New().String(),
		Type:           "evaluation.question_evaluated",
		Source:         "evaluation-activity",
		Version:        domain.PipelineVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: rec.IdempotencyKey,
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		TraceID:        traceID,
		Payload:        payload,
	}, "QuestionEvaluated")
}

// EmitScriptCompleted announces a script reaching its terminal status.
func (e *EventEmitter) EmitScriptCompleted(ctx context.Context, script *domain.Script, traceID string) {
	payload, err := json.Marshal(map[string]any{
		"scriptId":   script.ID,
		"artifactId": script.ArtifactID,
		"examId":     script.ExamID,
		"status":     script.Status,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal ScriptCompleted payload", "error", err)
		return
	}

	wfCtx := e.base.GetWorkflowContext(ctx)
	e.base.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.New().String(),
		Type:           "evaluation.script_completed",
		Source:         "evaluation-activity",
		Version:        domain.PipelineVersion,
		Timestamp:      time.Now().UTC(),
		IdempotencyKey: fmt.Sprintf("script-complete:%s", script.ID),
		InstitutionID:  script.InstitutionID,
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		TraceID:        traceID,
		Payload:        payload,
	}, "ScriptCompleted")
}
