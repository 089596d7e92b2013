package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// Explain runs the explainability stage, producing the narrative audit trail
// for the whole evaluation. The model's review recommendation is advisory
// only; Chain.EvaluateAnswer replaces it with the deterministic decision
// table's output.
func (c *Chain) Explain(
	ctx context.Context,
	questionText, answerText string,
	rubric *domain.GroundedRubric,
	scores []domain.CriterionScore,
	audit *domain.ConsistencyAudit,
	feedback *domain.StudentFeedback,
	totalScore, maxScore float64,
) (*domain.ExplainabilityResult, domain.TokenUsage, error) {
	stageOutputs := map[string]any{
		"groundedRubric":   rubric,
		"criterionScores":  scores,
		"consistencyAudit": audit,
		"feedback":         feedback,
	}
	outputsJSON, err := json.MarshalIndent(stageOutputs, "", "  ")
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("marshal stage outputs: %w", err)
	}

	pct := 0.0
	if maxScore > 0 {
		pct = totalScore / maxScore * 100
	}
	input := fmt.Sprintf(
		"## Question\n%s\n\n## Student's Answer\n%s\n\n"+
			"## Pipeline Stage Outputs\n%s\n\n"+
			"## Result\nTotal: %.2f out of %.2f (%.1f%%)\n\n"+
			"Write your JSON audit trail now.",
		questionText, answerText, outputsJSON, totalScore, maxScore, pct,
	)

	var result domain.ExplainabilityResult
	usage, _, err := c.inv.invoke(ctx, "explainability", explainabilityInstruction, input, explainabilitySchema, &result)
	if err != nil {
		return nil, domain.TokenUsage{}, err
	}
	if err := result.Validate(); err != nil {
		return nil, usage, err
	}
	return &result, usage, nil
}
