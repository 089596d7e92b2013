// Package workflow defines the Temporal workflow that drives one uploaded
// script through the full pipeline: ingestion and page splitting, per-page
// recognition fan-out, aggregation, segmentation, script materialization,
// per-question evaluation fan-out, and completion fan-in. All control flow
// here is deterministic; everything with side effects lives in activities.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/evaluation"
	"github.com/oakgrove/gradepipe/internal/recognition"
	"github.com/oakgrove/gradepipe/internal/segmentation"
)

// Task queues. Recognition work is I/O and vision bound; evaluation work is
// long multi-stage generation. Separate queues let the two worker pools scale
// independently.
const (
	QueueRecognition = "recognition"
	QueueEvaluation  = "evaluation"
)

// Activity names as registered on the workers. Struct methods register under
// their method name.
const (
	activityIngestArtifact        = "IngestArtifact"
	activityRecognizePage         = "RecognizePage"
	activityAggregatePages        = "AggregatePages"
	activitySegmentAnswers        = "SegmentAnswers"
	activityPrepareScript         = "PrepareScript"
	activityEvaluateQuestion      = "EvaluateQuestion"
	activityCheckScriptCompletion = "CheckScriptCompletion"
)

// PipelineRequest starts one pipeline execution for an uploaded artifact.
type PipelineRequest struct {
	ArtifactID string `json:"artifactId"`
	TraceID    string `json:"traceId"`
}

// Validate checks the request before any activity is scheduled.
func (r *PipelineRequest) Validate() error {
	if r.ArtifactID == "" {
		return domain.ErrArtifactNotFound
	}
	return nil
}

// PipelineResult is the workflow's terminal summary.
type PipelineResult struct {
	ScriptID       string              `json:"scriptId"`
	RunID          string              `json:"runId"`
	ScriptStatus   domain.ScriptStatus `json:"scriptStatus"`
	PageCount      int                 `json:"pageCount"`
	QuestionCount  int                 `json:"questionCount"`
	EvaluatedCount int                 `json:"evaluatedCount"`
}

// ScriptPipelineWorkflow runs the whole pipeline for one artifact. Page
// recognition and question evaluation fan out in parallel; every other step
// is sequential. Activity retries follow an exponential backoff starting at
// 20 seconds, so transient provider failures heal without operator action
// while nonretryable failures surface immediately.
func ScriptPipelineWorkflow(ctx workflow.Context, req PipelineRequest) (*PipelineResult, error) {
	// Version gate enables safe evolution of the pipeline shape.
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "pipeline.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid pipeline request", "ValidationError", err)
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("Pipeline started", "artifact_id", req.ArtifactID, "trace_id", req.TraceID)

	recognitionCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           QueueRecognition,
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         retryPolicy(),
	})
	evaluationCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		TaskQueue:           QueueEvaluation,
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         retryPolicy(),
	})

	// Ingest: download, split, page ceiling.
	var ingested recognition.IngestArtifactOutput
	err := workflow.ExecuteActivity(recognitionCtx, activityIngestArtifact, recognition.IngestArtifactInput{
		ArtifactID: req.ArtifactID,
		TraceID:    req.TraceID,
	}).Get(ctx, &ingested)
	if err != nil {
		return nil, err
	}

	// Per-page recognition fan-out. Every page must finish before
	// aggregation; a single unrecoverable page fails the pipeline.
	pageFutures := make([]workflow.Future, 0, len(ingested.PagePaths))
	for i, pagePath := range ingested.PagePaths {
		pageFutures = append(pageFutures, workflow.ExecuteActivity(recognitionCtx, activityRecognizePage, recognition.RecognizePageInput{
			ArtifactID: req.ArtifactID,
			PageNumber: i + 1,
			PagePath:   pagePath,
			TraceID:    req.TraceID,
		}))
	}
	for _, f := range pageFutures {
		var pageOut recognition.RecognizePageOutput
		if err := f.Get(ctx, &pageOut); err != nil {
			return nil, err
		}
	}

	var aggregated recognition.AggregatePagesOutput
	err = workflow.ExecuteActivity(recognitionCtx, activityAggregatePages, recognition.AggregatePagesInput{
		ArtifactID: req.ArtifactID,
		TraceID:    req.TraceID,
	}).Get(ctx, &aggregated)
	if err != nil {
		return nil, err
	}

	var segmented segmentation.SegmentAnswersOutput
	err = workflow.ExecuteActivity(evaluationCtx, activitySegmentAnswers, segmentation.SegmentAnswersInput{
		ArtifactID: req.ArtifactID,
		FullText:   aggregated.FullText,
		TraceID:    req.TraceID,
	}).Get(ctx, &segmented)
	if err != nil {
		return nil, err
	}

	var prepared evaluation.PrepareScriptOutput
	err = workflow.ExecuteActivity(evaluationCtx, activityPrepareScript, evaluation.PrepareScriptInput{
		ArtifactID:      req.ArtifactID,
		Segmentation:    segmented.Result,
		OCRConfidence:   aggregated.AvgConfidence,
		OCRQualityFlags: aggregated.QualityFlags,
		TraceID:         req.TraceID,
	}).Get(ctx, &prepared)
	if err != nil {
		return nil, err
	}

	logger.Info("Evaluation fan-out",
		"script_id", prepared.ScriptID,
		"run_id", prepared.RunID,
		"questions", len(prepared.QuestionIDs))

	evalFutures := make([]workflow.Future, 0, len(prepared.QuestionIDs))
	for _, questionID := range prepared.QuestionIDs {
		evalFutures = append(evalFutures, workflow.ExecuteActivity(evaluationCtx, activityEvaluateQuestion, evaluation.EvaluateQuestionInput{
			RunID:      prepared.RunID,
			ScriptID:   prepared.ScriptID,
			QuestionID: questionID,
			TraceID:    req.TraceID,
		}))
	}
	evaluatedCount := 0
	for _, f := range evalFutures {
		var evalOut evaluation.EvaluateQuestionOutput
		if err := f.Get(ctx, &evalOut); err != nil {
			return nil, err
		}
		if evalOut.Performed {
			evaluatedCount++
		}
	}

	var completion evaluation.CheckScriptCompletionOutput
	err = workflow.ExecuteActivity(evaluationCtx, activityCheckScriptCompletion, evaluation.CheckScriptCompletionInput{
		ScriptID: prepared.ScriptID,
		TraceID:  req.TraceID,
	}).Get(ctx, &completion)
	if err != nil {
		return nil, err
	}

	logger.Info("Pipeline finished",
		"script_id", prepared.ScriptID,
		"status", completion.Status,
		"evaluated", evaluatedCount)

	return &PipelineResult{
		ScriptID:       prepared.ScriptID,
		RunID:          prepared.RunID,
		ScriptStatus:   completion.Status,
		PageCount:      ingested.PageCount,
		QuestionCount:  len(prepared.QuestionIDs),
		EvaluatedCount: evaluatedCount,
	}, nil
}

// retryPolicy is the shared activity retry shape: exponential backoff
// doubling from 20 seconds, capped, with a bounded attempt budget.
func retryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    20 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    10 * time.Minute,
		MaximumAttempts:    5,
	}
}
