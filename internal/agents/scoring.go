package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// ScoreCriterion runs the scoring stage for one grounded criterion.
// Per-criterion isolation keeps holistic impressions of the answer from
// inflating individual scores.
func (c *Chain) ScoreCriterion(
	ctx context.Context,
	questionText, answerText string,
	criterion *domain.GroundedCriterion,
) (*domain.CriterionScore, domain.TokenUsage, error) {
	criterionJSON, err := json.MarshalIndent(criterion, "", "  ")
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("marshal criterion: %w", err)
	}

	input := fmt.Sprintf(
		"## Question\n%s\n\n## Student's Answer\n"+
			"(OCR-extracted text; may contain minor artifacts)\n%s\n\n"+
			"## Rubric Criterion to Evaluate\nScore the answer against THIS criterion only.\n%s\n\n"+
			"Evaluate and return your JSON score now.",
		questionText, answerText, criterionJSON,
	)

	var score domain.CriterionScore
	usage, _, err := c.inv.invoke(ctx, "scoring", scoringInstruction, input, scoringSchema, &score)
	if err != nil {
		return nil, domain.TokenUsage{}, err
	}

	score.CriterionID = criterion.CriterionID
	score.MaxMarks = criterion.MaxMarks
	if score.MarksAwarded > score.MaxMarks {
		score.MarksAwarded = score.MaxMarks
	}
	score.MarksAwarded = snapToGranularity(score.MarksAwarded)
	if err := score.Validate(); err != nil {
		return nil, usage, err
	}
	return &score, usage, nil
}

// ScoreAllCriteria scores every grounded criterion sequentially, in rubric
// order, accumulating usage across calls.
func (c *Chain) ScoreAllCriteria(
	ctx context.Context,
	questionText, answerText string,
	rubric *domain.GroundedRubric,
) ([]domain.CriterionScore, domain.TokenUsage, error) {
	scores := make([]domain.CriterionScore, 0, len(rubric.Criteria))
	var usage domain.TokenUsage
	for i := range rubric.Criteria {
		score, u, err := c.ScoreCriterion(ctx, questionText, answerText, &rubric.Criteria[i])
		usage.Add(u)
		if err != nil {
			return nil, usage, err
		}
		scores = append(scores, *score)
	}
	return scores, usage, nil
}

// snapToGranularity rounds marks to the nearest permitted increment so minor
// float noise from the model never fails granularity validation.
func snapToGranularity(marks float64) float64 {
	steps := marks / domain.ScoreGranularity
	return domain.Round4(domain.ScoreGranularity * float64(int(steps+0.5)))
}
