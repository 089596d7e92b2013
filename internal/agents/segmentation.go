package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// questionRef is the minimal question view the segmenter receives: enough to
// match content, nothing that could leak marking guidance into extraction.
type questionRef struct {
	QuestionID   string `json:"questionId"`
	QuestionText string `json:"questionText"`
}

// SegmentAnswers maps the aggregated OCR transcript onto the exam's
// questions. The returned result is validated to cover every supplied
// question exactly once; a missing answer arrives as a nil AnswerText, which
// downstream turns into a flagged entry.
func (c *Chain) SegmentAnswers(
	ctx context.Context,
	questions []domain.ExamQuestion,
	ocrText string,
) (*domain.SegmentationResult, domain.TokenUsage, error) {
	refs := make([]questionRef, 0, len(questions))
	expected := make([]string, 0, len(questions))
	for _, q := range questions {
		refs = append(refs, questionRef{QuestionID: q.QuestionID, QuestionText: q.QuestionText})
		expected = append(expected, q.QuestionID)
	}

	questionsJSON, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("marshal questions: %w", err)
	}

	input := fmt.Sprintf(
		"## Exam Questions\nEach answer in your output must reference one of these questionIds.\n%s\n\n"+
			"## OCR Transcript\n%s\n\n"+
			"Map the transcript to the questions and return your JSON now.",
		questionsJSON, ocrText,
	)

	var result domain.SegmentationResult
	usage, _, err := c.inv.invoke(ctx, "segmentation", segmentationInstruction, input, segmentationSchema, &result)
	if err != nil {
		return nil, domain.TokenUsage{}, err
	}
	if err := result.Validate(expected); err != nil {
		return nil, usage, err
	}
	return &result, usage, nil
}
