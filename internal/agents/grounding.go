package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// GroundRubric runs the grounding stage for a question. It never sees the
// student's answer; the output is the rubric specification every later stage
// scores against. The criterion mark sum is forced authoritative over
// whatever total the model reports.
func (c *Chain) GroundRubric(
	ctx context.Context,
	question *domain.ExamQuestion,
) (*domain.GroundedRubric, domain.TokenUsage, error) {
	rubricJSON, err := json.MarshalIndent(question.Rubric, "", "  ")
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("marshal rubric: %w", err)
	}

	input := fmt.Sprintf(
		"## Question\nquestionId: %s\n%s\n\n## Rubric Criteria\n%s\n\n"+
			"Analyze this rubric and return your JSON specification now.",
		question.QuestionID, question.QuestionText, rubricJSON,
	)

	var rubric domain.GroundedRubric
	usage, _, err := c.inv.invoke(ctx, "grounding", groundingInstruction, input, groundingSchema, &rubric)
	if err != nil {
		return nil, domain.TokenUsage{}, err
	}

	rubric.QuestionID = question.QuestionID
	rubric.TotalMarks = domain.Round4(sumCriterionMarks(rubric.Criteria))
	if err := rubric.Validate(); err != nil {
		return nil, usage, err
	}
	return &rubric, usage, nil
}

func sumCriterionMarks(criteria []domain.GroundedCriterion) float64 {
	sum := 0.0
	for _, c := range criteria {
		sum += c.MaxMarks
	}
	return sum
}
