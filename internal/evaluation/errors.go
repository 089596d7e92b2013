package evaluation

import (
	"go.temporal.io/sdk/temporal"

	"github.com/oakgrove/gradepipe/internal/genclient"
)

const (
	errTagEvaluation = "EvaluationError"
	errTagTransport  = "TransportError"
	errTagValidation = "ValidationError"
)

func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}

func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// classifyGeneration maps a generation-chain failure to the retry policy it
// deserves. Transport problems heal with time; everything else is retried too,
// since a fresh generation may produce valid output where the last one did not.
func classifyGeneration(err error, msg string) error {
	if genclient.IsTransient(err) {
		return retryable(errTagTransport, err, msg)
	}
	return retryable(errTagEvaluation, err, msg)
}
