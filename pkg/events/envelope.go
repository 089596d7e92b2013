// Package events provides the generic envelope and sink used for pipeline
// lifecycle event emission. Stage packages wrap their domain payloads in an
// Envelope and hand it to an EventSink; emission is always best-effort.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope wraps a pipeline event with the metadata consumers need for
// routing, deduplication, and correlation back to the workflow execution
// that produced it.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing.
	// Examples: "recognition.page_recognized", "evaluation.record_persisted".
	Type string `json:"type"`

	// Source names the emitting component, e.g. "recognition-activity".
	Source string `json:"source"`

	// Version is the payload schema version, semver.
	Version string `json:"version"`

	// Timestamp records wall-clock emission time.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey lets consumers drop duplicate emissions caused by
	// activity retries.
	IdempotencyKey string `json:"idempotency_key"`

	// InstitutionID scopes the event to the owning institution.
	InstitutionID string `json:"institution_id"`

	// WorkflowID and RunID tie the event to the Temporal execution.
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	// TraceID carries the pipeline-level trace identifier threaded from
	// the original upload.
	TraceID string `json:"trace_id"`

	// Payload is the stage-specific event body.
	Payload json.RawMessage `json:"payload"`
}

// EventSink receives envelopes for downstream delivery. Implementations
// must tolerate duplicates and return quickly; events matter for
// observability, never for correctness.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every event. Used in tests and when event delivery
// is disabled.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink creates a sink that discards everything.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }
