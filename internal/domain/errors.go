package domain

import "errors"

// Sentinel errors shared across pipeline stages. Activities wrap these with
// Temporal application errors carrying the appropriate retry classification.
var (
	// ErrArtifactNotFound indicates the referenced uploaded artifact does not exist.
	ErrArtifactNotFound = errors.New("uploaded artifact not found")

	// ErrScriptNotFound indicates the referenced script document does not exist.
	ErrScriptNotFound = errors.New("script not found")

	// ErrExamNotFound indicates the referenced exam definition does not exist.
	ErrExamNotFound = errors.New("exam not found")

	// ErrQuestionNotFound indicates a question id is absent from the exam definition.
	ErrQuestionNotFound = errors.New("question not found in exam")

	// ErrAnswerNotFound indicates a question id has no answer entry in the script.
	ErrAnswerNotFound = errors.New("answer not found in script")

	// ErrDuplicateScript indicates a script already exists for the artifact.
	// Store implementations enforce at most one script per uploaded artifact.
	ErrDuplicateScript = errors.New("script already exists for artifact")

	// ErrRecordNotFound indicates no evaluation record exists for the lookup key.
	ErrRecordNotFound = errors.New("evaluation record not found")

	// ErrPageLimitExceeded indicates an upload's page count exceeds the
	// configured ceiling. Never retried: the document will not shrink.
	ErrPageLimitExceeded = errors.New("page count exceeds configured limit")

	// ErrNoRecognizedText indicates aggregation found no usable page text.
	ErrNoRecognizedText = errors.New("no recognized text across pages")
)
