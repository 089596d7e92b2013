// Package segmentation implements the Temporal activity that maps aggregated
// OCR text onto the exam's questions. It bridges the recognition half of the
// pipeline to evaluation: unstructured transcript in, per-question answers
// out.
package segmentation

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/oakgrove/gradepipe/internal/agents"
	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/genclient"
	"github.com/oakgrove/gradepipe/internal/store"
	pkgactivity "github.com/oakgrove/gradepipe/pkg/activity"
)

const (
	errTagSegmentation = "SegmentationError"
	errTagTransport    = "TransportError"
	errTagValidation   = "ValidationError"
)

func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// Activities bundles the segmentation activity and its dependencies.
type Activities struct {
	pkgactivity.BaseActivities
	chain     *agents.Chain
	artifacts store.ArtifactStore
	exams     store.ExamStore
}

// NewActivities wires the segmentation activity.
func NewActivities(
	base pkgactivity.BaseActivities,
	chain *agents.Chain,
	artifacts store.ArtifactStore,
	exams store.ExamStore,
) *Activities {
	return &Activities{
		BaseActivities: base,
		chain:          chain,
		artifacts:      artifacts,
		exams:          exams,
	}
}

// SegmentAnswersInput carries the aggregated transcript for one artifact.
type SegmentAnswersInput struct {
	ArtifactID string `json:"artifactId"`
	FullText   string `json:"fullText"`
	TraceID    string `json:"traceId"`
}

// Validate checks the input before any work.
func (in *SegmentAnswersInput) Validate() error {
	if in.ArtifactID == "" {
		return fmt.Errorf("artifactId is required")
	}
	if in.FullText == "" {
		return fmt.Errorf("fullText is required")
	}
	return nil
}

// SegmentAnswersOutput is the validated segmentation result.
type SegmentAnswersOutput struct {
	Result domain.SegmentationResult `json:"result"`
	Usage  domain.TokenUsage         `json:"usage"`
}

// SegmentAnswers maps the transcript onto the exam's questions and moves the
// artifact to SEGMENTED. Missing reference data (artifact, exam) is a
// segmentation failure and never retried; transcripts do not gain reference
// data by waiting.
func (a *Activities) SegmentAnswers(ctx context.Context, in SegmentAnswersInput) (*SegmentAnswersOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(errTagValidation, err, "invalid segmentation input")
	}

	artifact, err := a.artifacts.FindByID(ctx, in.ArtifactID)
	if err != nil {
		return nil, nonRetryable(errTagSegmentation, err, "artifact lookup failed")
	}
	exam, err := a.exams.FindByID(ctx, artifact.ExamID)
	if err != nil {
		return nil, nonRetryable(errTagSegmentation, err, "exam lookup failed")
	}

	pkgactivity.SafeLog(ctx, "Segmenting answers",
		"artifact_id", artifact.ID,
		"trace_id", in.TraceID,
		"questions", len(exam.Questions))

	result, usage, err := a.chain.SegmentAnswers(ctx, exam.Questions, in.FullText)
	if err != nil {
		if genclient.IsTransient(err) {
			return nil, retryable(errTagTransport, err, "segmentation call failed")
		}
		return nil, retryable(errTagSegmentation, err, "segmentation produced unusable output")
	}

	if err := a.artifacts.SetStatus(ctx, artifact.ID, domain.ArtifactSegmented, ""); err != nil {
		return nil, retryable(errTagSegmentation, err, "mark artifact segmented")
	}

	return &SegmentAnswersOutput{Result: *result, Usage: usage}, nil
}
