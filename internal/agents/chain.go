package agents

import (
	"context"

	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/genclient"
)

// Chain runs the fixed five-stage evaluation sequence for one answer, plus
// the segmentation stage used earlier in the pipeline. Stages share nothing
// but the generation client; any stage failure aborts the whole question so
// no partial record is ever produced.
type Chain struct {
	inv *Invoker
}

// NewChain builds a chain over the given generation client.
func NewChain(client genclient.Client, maxRepairAttempts int) *Chain {
	return &Chain{inv: NewInvoker(client, maxRepairAttempts)}
}

// AnswerEvaluation is the complete outcome of evaluating one answer: every
// stage output, the recomputed totals, the deterministic review routing, and
// the accumulated token usage.
type AnswerEvaluation struct {
	GroundedRubric       domain.GroundedRubric
	CriterionScores      []domain.CriterionScore
	ConsistencyAudit     domain.ConsistencyAudit
	Feedback             domain.StudentFeedback
	Explainability       domain.ExplainabilityResult
	TotalScore           float64
	MaxPossibleScore     float64
	PercentageScore      float64
	ReviewRecommendation domain.ReviewRecommendation
	Usage                domain.TokenUsage
}

// EvaluateAnswer runs grounding, per-criterion scoring, consistency,
// feedback, and explainability in order. The consistency total is recomputed
// in code, adjustments are bounded, and the final review recommendation
// comes from the decision table in domain rather than from the model.
func (c *Chain) EvaluateAnswer(
	ctx context.Context,
	question *domain.ExamQuestion,
	answerText string,
) (*AnswerEvaluation, error) {
	var usage domain.TokenUsage

	rubric, u, err := c.GroundRubric(ctx, question)
	usage.Add(u)
	if err != nil {
		return nil, err
	}

	scores, u, err := c.ScoreAllCriteria(ctx, question.QuestionText, answerText, rubric)
	usage.Add(u)
	if err != nil {
		return nil, err
	}

	audit, u, err := c.AuditConsistency(ctx, question.QuestionText, answerText, rubric, scores)
	usage.Add(u)
	if err != nil {
		return nil, err
	}

	totalScore := audit.TotalScore
	maxScore := rubric.TotalMarks

	feedback, u, err := c.GenerateFeedback(ctx, question.QuestionText, answerText, audit, totalScore, maxScore)
	usage.Add(u)
	if err != nil {
		return nil, err
	}

	explainability, u, err := c.Explain(ctx, question.QuestionText, answerText, rubric, scores, audit, feedback, totalScore, maxScore)
	usage.Add(u)
	if err != nil {
		return nil, err
	}

	percentage := 0.0
	if maxScore > 0 {
		percentage = domain.Round2(totalScore / maxScore * 100)
	}

	recommendation, reason := domain.RecommendReview(domain.ReviewSignals{
		MinStageConfidence: minStageConfidence(rubric, scores, explainability),
		Assessment:         audit.OverallAssessment,
		AdjustmentCount:    len(audit.Adjustments),
		AmbiguousCriteria:  len(rubric.AmbiguousCriteria()),
		PercentageScore:    percentage,
	})
	explainability.ReviewRecommendation = recommendation
	explainability.ReviewReason = reason

	return &AnswerEvaluation{
		GroundedRubric:       *rubric,
		CriterionScores:      scores,
		ConsistencyAudit:     *audit,
		Feedback:             *feedback,
		Explainability:       *explainability,
		TotalScore:           totalScore,
		MaxPossibleScore:     maxScore,
		PercentageScore:      percentage,
		ReviewRecommendation: recommendation,
		Usage:                usage,
	}, nil
}

// minStageConfidence is the lowest confidence any stage reported.
func minStageConfidence(
	rubric *domain.GroundedRubric,
	scores []domain.CriterionScore,
	explainability *domain.ExplainabilityResult,
) float64 {
	minConf := rubric.GroundingConfidence
	for _, s := range scores {
		if s.ConfidenceScore < minConf {
			minConf = s.ConfidenceScore
		}
	}
	if explainability.AgentAgreementScore < minConf {
		minConf = explainability.AgentAgreementScore
	}
	return minConf
}
