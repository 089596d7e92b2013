// Package genclient provides the structured generation client used by every
// pipeline stage that talks to the vision/text generation service. It wraps an
// OpenAI-style chat completions API with transport retries, markdown fence
// stripping, JSON-Schema validation, and a bounded repair loop for invalid
// structured output.
package genclient

import (
	"context"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// Response is the raw outcome of one or more generation calls. For repaired
// structured completions, Usage and LatencyMs accumulate across every attempt.
type Response struct {
	Content   string
	Model     string
	Usage     domain.TokenUsage
	LatencyMs int64
}

// Options tune a single completion call. Zero values fall back to the
// client's configured defaults.
type Options struct {
	Temperature *float64
	MaxTokens   int
}

// Client is the generation-service interface the pipeline stages depend on.
// Implementations must retry transient transport failures internally and
// surface non-transient failures immediately.
type Client interface {
	// Complete performs a plain chat completion and returns the raw text.
	Complete(ctx context.Context, instruction, input string, opts Options) (*Response, error)

	// CompleteTyped performs a completion whose output must match schema.
	// The response is fence-stripped, schema-validated, and unmarshalled
	// into out. Invalid output triggers repair re-prompts at temperature
	// zero, up to maxRepairAttempts; usage accumulates across attempts.
	// Returns a GenerationError once the repair budget is exhausted.
	CompleteTyped(ctx context.Context, instruction, input string, schema *Schema, maxRepairAttempts int, out any) (*Response, error)

	// RecognizeText sends a page image to the vision model and returns the
	// transcribed text. Unreadable words arrive as "[illegible]" markers.
	RecognizeText(ctx context.Context, imagePath string) (*Response, error)
}
