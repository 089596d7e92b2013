package recognition

import (
	"go.temporal.io/sdk/temporal"

	"github.com/oakgrove/gradepipe/internal/genclient"
)

// Error tags surfaced on Temporal application errors from this package.
const (
	errTagRecognition = "RecognitionError"
	errTagTransport   = "TransportError"
	errTagValidation  = "ValidationError"
)

// retryable wraps an error as a Temporal retryable application error.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}

// nonRetryable wraps an error as a Temporal non-retryable application error.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// classifyGeneration maps a generation-client error onto the retry taxonomy:
// transport failures retry, everything else does not.
func classifyGeneration(err error, msg string) error {
	if genclient.IsTransient(err) {
		return retryable(errTagTransport, err, msg)
	}
	return nonRetryable(errTagRecognition, err, msg)
}
