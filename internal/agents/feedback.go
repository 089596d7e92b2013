package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// GenerateFeedback runs the feedback stage over the audited final scores.
func (c *Chain) GenerateFeedback(
	ctx context.Context,
	questionText, answerText string,
	audit *domain.ConsistencyAudit,
	totalScore, maxScore float64,
) (*domain.StudentFeedback, domain.TokenUsage, error) {
	finalJSON, err := json.MarshalIndent(audit.FinalScores, "", "  ")
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("marshal final scores: %w", err)
	}

	input := fmt.Sprintf(
		"## Question\n%s\n\n## Student's Answer\n%s\n\n"+
			"## Final Scores\n%s\n\n## Result\nTotal: %.2f out of %.2f\n\n"+
			"Write your JSON feedback now.",
		questionText, answerText, finalJSON, totalScore, maxScore,
	)

	var feedback domain.StudentFeedback
	usage, _, err := c.inv.invoke(ctx, "feedback", feedbackInstruction, input, feedbackSchema, &feedback)
	if err != nil {
		return nil, domain.TokenUsage{}, err
	}
	if err := feedback.Validate(); err != nil {
		return nil, usage, err
	}
	return &feedback, usage, nil
}
