// Package agents implements the generation-backed stages of the evaluation
// pipeline: answer segmentation plus the five-stage chain of rubric
// grounding, per-criterion scoring, consistency audit, student feedback, and
// explainability. Every stage follows the same contract: a fixed instruction,
// a built input, a JSON-Schema the output must satisfy, and a typed result.
// Stages hold no mutable state; all coordination lives in Chain.
package agents

import (
	"context"
	"fmt"

	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/genclient"
)

// Invoker runs one structured generation call for a named agent and tracks
// its resource usage.
type Invoker struct {
	client            genclient.Client
	maxRepairAttempts int
}

// NewInvoker wires an invoker with the shared generation client.
// maxRepairAttempts bounds the JSON repair loop per call.
func NewInvoker(client genclient.Client, maxRepairAttempts int) *Invoker {
	if maxRepairAttempts <= 0 {
		maxRepairAttempts = 2
	}
	return &Invoker{client: client, maxRepairAttempts: maxRepairAttempts}
}

// invoke performs one typed completion and returns its accumulated usage.
// A failed call wraps the cause with the agent name so orchestration errors
// identify the failing stage.
func (i *Invoker) invoke(
	ctx context.Context,
	agent, instruction, input string,
	schema *genclient.Schema,
	out any,
) (domain.TokenUsage, int64, error) {
	resp, err := i.client.CompleteTyped(ctx, instruction, input, schema, i.maxRepairAttempts, out)
	if err != nil {
		// Preserve the transport/generation classification for retry
		// decisions upstream.
		return domain.TokenUsage{}, 0, fmt.Errorf("agent %s: %w", agent, err)
	}
	return resp.Usage, resp.LatencyMs, nil
}
