package domain

import (
	"fmt"
	"strings"
	"time"
)

// ScriptStatus tracks a script through evaluation.
type ScriptStatus string

const (
	ScriptPending    ScriptStatus = "PENDING"
	ScriptEvaluating ScriptStatus = "EVALUATING"
	ScriptComplete   ScriptStatus = "COMPLETE"
	ScriptFlagged    ScriptStatus = "FLAGGED"
)

// ScriptSource records how the script text was obtained.
type ScriptSource string

const (
	SourceOCR   ScriptSource = "OCR"
	SourceTyped ScriptSource = "TYPED"
)

// ScriptAnswer is one question's answer within a script. IsFlagged marks
// answers the segmenter could not locate; flagged answers are excluded from
// evaluation fan-out but still counted toward completion.
type ScriptAnswer struct {
	QuestionID string `json:"questionId" validate:"required"`
	Text       string `json:"text"`
	IsFlagged  bool   `json:"isFlagged"`
}

// Script is the structured, per-question view of an uploaded artifact,
// materialized once segmentation succeeds. At most one script exists per
// artifact; the store layer enforces the uniqueness.
type Script struct {
	ID                       string         `json:"id" validate:"required"`
	InstitutionID            string         `json:"institutionId" validate:"required"`
	ExamID                   string         `json:"examId" validate:"required"`
	ArtifactID               string         `json:"artifactId" validate:"required"`
	StudentMeta              StudentMeta    `json:"studentMeta"`
	Answers                  []ScriptAnswer `json:"answers" validate:"dive"`
	Source                   ScriptSource   `json:"source" validate:"required"`
	OCRConfidenceAverage     float64        `json:"ocrConfidenceAverage" validate:"gte=0,lte=1"`
	OCRQualityFlags          []QualityFlag  `json:"ocrQualityFlags"`
	SegmentationConfidence   float64        `json:"segmentationConfidence" validate:"gte=0,lte=1"`
	UnmappedText             string         `json:"unmappedText,omitempty"`
	Status                   ScriptStatus   `json:"status" validate:"required"`
	CreatedAt                time.Time      `json:"createdAt"`
	UpdatedAt                time.Time      `json:"updatedAt"`
}

// Validate checks structural integrity of the script document.
func (s *Script) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid script: %w", err)
	}
	return nil
}

// Answer returns the answer entry for the given question id.
func (s *Script) Answer(questionID string) (*ScriptAnswer, error) {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return &s.Answers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAnswerNotFound, questionID)
}

// EvaluableQuestionIDs returns the question ids eligible for evaluation
// fan-out: not flagged and carrying non-blank text.
func (s *Script) EvaluableQuestionIDs() []string {
	var ids []string
	for _, a := range s.Answers {
		if !a.IsFlagged && strings.TrimSpace(a.Text) != "" {
			ids = append(ids, a.QuestionID)
		}
	}
	return ids
}

// HasFlaggedAnswers reports whether any answer was flagged during segmentation.
// A script with flagged answers finishes FLAGGED rather than COMPLETE.
func (s *Script) HasFlaggedAnswers() bool {
	for _, a := range s.Answers {
		if a.IsFlagged {
			return true
		}
	}
	return false
}

// SegmentedAnswer is the segmenter's output for a single question.
// AnswerText is nil when no answer could be located; that is distinct from a
// located but empty answer and causes the entry to be flagged.
type SegmentedAnswer struct {
	QuestionID string  `json:"questionId" validate:"required"`
	AnswerText *string `json:"answerText"`
}

// SegmentationResult is the full segmenter output for one artifact.
// Every supplied question id appears exactly once in Answers.
type SegmentationResult struct {
	Answers                []SegmentedAnswer `json:"answers" validate:"dive"`
	UnmappedText           string            `json:"unmappedText,omitempty"`
	SegmentationConfidence float64           `json:"segmentationConfidence" validate:"gte=0,lte=1"`
	Notes                  string            `json:"notes,omitempty"`
}

// Validate checks the segmentation result covers each expected question id
// exactly once, with no extras.
func (r *SegmentationResult) Validate(expectedQuestionIDs []string) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid segmentation result: %w", err)
	}
	seen := make(map[string]int, len(r.Answers))
	for _, a := range r.Answers {
		seen[a.QuestionID]++
	}
	for _, id := range expectedQuestionIDs {
		switch seen[id] {
		case 0:
			return fmt.Errorf("segmentation result missing question %s", id)
		case 1:
		default:
			return fmt.Errorf("segmentation result repeats question %s", id)
		}
	}
	if len(seen) != len(expectedQuestionIDs) {
		return fmt.Errorf("segmentation result contains unknown question ids")
	}
	return nil
}
