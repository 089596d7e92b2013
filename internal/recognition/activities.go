// Package recognition implements the Temporal activities of the recognition
// half of the pipeline: artifact ingestion with page splitting, per-page
// vision transcription, and page aggregation. Activities run on the
// recognition task queue and are safe under at-least-once delivery; page
// results are immutable and duplicate recognitions are absorbed at the
// store.
package recognition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oakgrove/gradepipe/internal/blobstore"
	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/genclient"
	"github.com/oakgrove/gradepipe/internal/store"
	pkgactivity "github.com/oakgrove/gradepipe/pkg/activity"
)

// Activities bundles the recognition activities and their dependencies.
type Activities struct {
	pkgactivity.BaseActivities
	client    genclient.Client
	artifacts store.ArtifactStore
	pages     store.PageStore
	blobs     blobstore.Store
	events    *EventEmitter
	maxPages  int
}

// NewActivities wires the recognition activities.
// maxPages is the hard page ceiling; artifacts above it fail immediately.
func NewActivities(
	base pkgactivity.BaseActivities,
	client genclient.Client,
	artifacts store.ArtifactStore,
	pages store.PageStore,
	blobs blobstore.Store,
	maxPages int,
) *Activities {
	return &Activities{
		BaseActivities: base,
		client:         client,
		artifacts:      artifacts,
		pages:          pages,
		blobs:          blobs,
		events:         NewEventEmitter(base),
		maxPages:       maxPages,
	}
}

// IngestArtifactInput identifies the upload to ingest.
type IngestArtifactInput struct {
	ArtifactID string `json:"artifactId"`
	TraceID    string `json:"traceId"`
}

// Validate checks the input before any store access.
func (in *IngestArtifactInput) Validate() error {
	if in.ArtifactID == "" {
		return fmt.Errorf("artifactId is required")
	}
	return nil
}

// IngestArtifactOutput carries the per-page file paths for recognition
// fan-out.
type IngestArtifactOutput struct {
	PageCount int      `json:"pageCount"`
	PagePaths []string `json:"pagePaths"`
}

// IngestArtifact moves the artifact to PROCESSING, downloads the upload, and
// splits it into pages. An artifact over the page ceiling is failed
// immediately and never retried; a ten-thousand-page upload will not shrink
// on the next attempt.
func (a *Activities) IngestArtifact(ctx context.Context, in IngestArtifactInput) (*IngestArtifactOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(errTagValidation, err, "invalid ingest input")
	}

	artifact, err := a.artifacts.FindByID(ctx, in.ArtifactID)
	if err != nil {
		return nil, nonRetryable(errTagRecognition, err, "artifact lookup failed")
	}

	pkgactivity.SafeLog(ctx, "Ingesting artifact",
		"artifact_id", artifact.ID,
		"trace_id", in.TraceID,
		"mime_type", artifact.MimeType)

	if err := a.artifacts.SetStatus(ctx, artifact.ID, domain.ArtifactProcessing, ""); err != nil {
		return nil, retryable(errTagRecognition, err, "mark artifact processing")
	}

	localPath, err := a.blobs.Download(ctx, artifact.BlobKey)
	if err != nil {
		// Blob storage hiccups are transient; the object itself is durable.
		return nil, retryable(errTagTransport, err, "download artifact blob")
	}

	pagePaths, err := splitPages(localPath, artifact.IsPDF())
	if err != nil {
		a.failArtifact(ctx, artifact.ID, "unreadable document: "+err.Error())
		return nil, nonRetryable(errTagRecognition, err, "split artifact pages")
	}

	if len(pagePaths) > a.maxPages {
		reason := fmt.Sprintf("%d pages exceeds limit of %d", len(pagePaths), a.maxPages)
		a.failArtifact(ctx, artifact.ID, reason)
		return nil, nonRetryable(errTagValidation, domain.ErrPageLimitExceeded, reason)
	}

	if err := a.artifacts.SetPageCount(ctx, artifact.ID, len(pagePaths)); err != nil {
		return nil, retryable(errTagRecognition, err, "record page count")
	}

	a.events.EmitArtifactIngested(ctx, artifact, len(pagePaths), in.TraceID)

	return &IngestArtifactOutput{PageCount: len(pagePaths), PagePaths: pagePaths}, nil
}

// RecognizePageInput identifies one page to transcribe.
type RecognizePageInput struct {
	ArtifactID string `json:"artifactId"`
	PageNumber int    `json:"pageNumber"`
	PagePath   string `json:"pagePath"`
	TraceID    string `json:"traceId"`
}

// Validate checks the input before any work.
func (in *RecognizePageInput) Validate() error {
	if in.ArtifactID == "" {
		return fmt.Errorf("artifactId is required")
	}
	if in.PageNumber < 1 {
		return fmt.Errorf("pageNumber must be >= 1")
	}
	if in.PagePath == "" {
		return fmt.Errorf("pagePath is required")
	}
	return nil
}

// RecognizePageOutput reports the stored page's quality signals.
type RecognizePageOutput struct {
	Confidence   float64              `json:"confidence"`
	QualityFlags []domain.QualityFlag `json:"qualityFlags"`
}

// RecognizePage transcribes one page through the vision model and persists
// an immutable PageRecognitionResult. A page already recognized (a duplicate
// delivery after a worker crash) returns the stored result untouched.
func (a *Activities) RecognizePage(ctx context.Context, in RecognizePageInput) (*RecognizePageOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(errTagValidation, err, "invalid recognize input")
	}

	exists, err := a.pages.Exists(ctx, in.ArtifactID, in.PageNumber)
	if err != nil {
		return nil, retryable(errTagRecognition, err, "page existence check")
	}
	if exists {
		pkgactivity.SafeLog(ctx, "Page already recognized, absorbing duplicate",
			"artifact_id", in.ArtifactID,
			"page", in.PageNumber)
		stored, err := a.pages.FindByArtifact(ctx, in.ArtifactID)
		if err != nil {
			return nil, retryable(errTagRecognition, err, "load stored page")
		}
		for _, p := range stored {
			if p.PageNumber == in.PageNumber {
				return &RecognizePageOutput{Confidence: p.Confidence, QualityFlags: p.QualityFlags}, nil
			}
		}
	}

	a.RecordHeartbeat(ctx, fmt.Sprintf("recognizing page %d", in.PageNumber))

	start := time.Now()
	resp, err := a.client.RecognizeText(ctx, in.PagePath)
	if err != nil {
		return nil, classifyGeneration(err, "vision transcription failed")
	}

	confidence := domain.EstimateConfidence(resp.Content)
	var flags []domain.QualityFlag
	if confidence < domain.LowConfidenceThreshold {
		flags = append(flags, domain.FlagLowConfidence)
	}

	result := &domain.PageRecognitionResult{
		ArtifactID:   in.ArtifactID,
		PageNumber:   in.PageNumber,
		Text:         resp.Content,
		Confidence:   confidence,
		QualityFlags: flags,
		Provider:     resp.Model,
		ProcessingMs: time.Since(start).Milliseconds(),
	}
	if err := result.Validate(); err != nil {
		return nil, nonRetryable(errTagValidation, err, "invalid page result")
	}
	if err := a.pages.Insert(ctx, result); err != nil {
		return nil, retryable(errTagRecognition, err, "persist page result")
	}

	a.events.EmitPageRecognized(ctx, result, in.TraceID)

	return &RecognizePageOutput{Confidence: confidence, QualityFlags: flags}, nil
}

// AggregatePagesInput identifies the artifact whose pages are complete.
type AggregatePagesInput struct {
	ArtifactID string `json:"artifactId"`
	TraceID    string `json:"traceId"`
}

// AggregatePagesOutput is the script-level recognition summary handed to
// segmentation.
type AggregatePagesOutput struct {
	FullText      string               `json:"fullText"`
	AvgConfidence float64              `json:"avgConfidence"`
	QualityFlags  []domain.QualityFlag `json:"qualityFlags"`
	PageCount     int                  `json:"pageCount"`
}

// AggregatePages combines all stored page results in page order and moves
// the artifact to OCR_COMPLETE. The workflow guarantees every page activity
// finished before this runs. An artifact with no usable text at all cannot
// proceed and is failed.
func (a *Activities) AggregatePages(ctx context.Context, in AggregatePagesInput) (*AggregatePagesOutput, error) {
	if in.ArtifactID == "" {
		return nil, nonRetryable(errTagValidation, fmt.Errorf("artifactId is required"), "invalid aggregate input")
	}

	pages, err := a.pages.FindByArtifact(ctx, in.ArtifactID)
	if err != nil {
		return nil, retryable(errTagRecognition, err, "load page results")
	}

	summary := domain.SummarizePages(pages)
	if strings.TrimSpace(summary.FullText) == "" {
		reason := "no recognizable text on any page"
		a.failArtifact(ctx, in.ArtifactID, reason)
		return nil, nonRetryable(errTagRecognition, domain.ErrNoRecognizedText, reason)
	}

	if err := a.artifacts.SetStatus(ctx, in.ArtifactID, domain.ArtifactOCRComplete, ""); err != nil {
		return nil, retryable(errTagRecognition, err, "mark artifact ocr complete")
	}

	pkgactivity.SafeLog(ctx, "Aggregated page results",
		"artifact_id", in.ArtifactID,
		"trace_id", in.TraceID,
		"pages", summary.PageCount,
		"avg_confidence", summary.AvgConfidence)

	return &AggregatePagesOutput{
		FullText:      summary.FullText,
		AvgConfidence: summary.AvgConfidence,
		QualityFlags:  summary.QualityFlags,
		PageCount:     summary.PageCount,
	}, nil
}

// failArtifact records a terminal failure; best-effort, the primary error is
// already on its way to the caller.
func (a *Activities) failArtifact(ctx context.Context, artifactID, reason string) {
	if err := a.artifacts.SetStatus(ctx, artifactID, domain.ArtifactFailed, reason); err != nil {
		pkgactivity.SafeLogError(ctx, "Failed to mark artifact FAILED",
			"artifact_id", artifactID,
			"error", err)
	}
}
