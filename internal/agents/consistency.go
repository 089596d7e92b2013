package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oakgrove/gradepipe/internal/domain"
)

// AuditConsistency runs the consistency stage over the full score set and
// then normalizes its output in code:
//
//   - every adjustment is clamped to the permitted band around the original
//     score and to [0, maxMarks]
//   - finalScores are rebuilt so unadjusted criteria keep their original
//     marks and every criterion appears exactly once
//   - the total is recomputed as the exact sum; the generated value is
//     discarded
func (c *Chain) AuditConsistency(
	ctx context.Context,
	questionText, answerText string,
	rubric *domain.GroundedRubric,
	scores []domain.CriterionScore,
) (*domain.ConsistencyAudit, domain.TokenUsage, error) {
	rubricJSON, err := json.MarshalIndent(rubric, "", "  ")
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("marshal rubric: %w", err)
	}
	scoresJSON, err := json.MarshalIndent(scores, "", "  ")
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("marshal scores: %w", err)
	}

	input := fmt.Sprintf(
		"## Question\n%s\n\n## Student's Answer\n%s\n\n"+
			"## Grounded Rubric\n%s\n\n## Criterion Scores\n%s\n\n"+
			"Audit these scores and return your JSON verdict now.",
		questionText, answerText, rubricJSON, scoresJSON,
	)

	var audit domain.ConsistencyAudit
	usage, _, err := c.inv.invoke(ctx, "consistency", consistencyInstruction, input, consistencySchema, &audit)
	if err != nil {
		return nil, domain.TokenUsage{}, err
	}

	normalizeAudit(&audit, scores)
	if err := audit.Validate(); err != nil {
		return nil, usage, err
	}
	return &audit, usage, nil
}

// normalizeAudit rebuilds the audit's final scores from the original scores
// plus bounded adjustments, then recomputes the total.
func normalizeAudit(audit *domain.ConsistencyAudit, scores []domain.CriterionScore) {
	maxByID := make(map[string]float64, len(scores))
	originalByID := make(map[string]float64, len(scores))
	for _, s := range scores {
		maxByID[s.CriterionID] = s.MaxMarks
		originalByID[s.CriterionID] = s.MarksAwarded
	}

	// Keep only adjustments that target a real criterion, with the
	// recommended value clamped to the permitted band.
	bounded := audit.Adjustments[:0]
	adjustedByID := make(map[string]float64)
	for _, adj := range audit.Adjustments {
		original, ok := originalByID[adj.CriterionID]
		if !ok {
			continue
		}
		adj.OriginalScore = original
		adj.RecommendedScore = domain.BoundFinalScore(original, adj.RecommendedScore, maxByID[adj.CriterionID])
		adjustedByID[adj.CriterionID] = adj.RecommendedScore
		bounded = append(bounded, adj)
	}
	audit.Adjustments = bounded

	final := make([]domain.FinalCriterionScore, 0, len(scores))
	for _, s := range scores {
		value := s.MarksAwarded
		if adjusted, ok := adjustedByID[s.CriterionID]; ok {
			value = adjusted
		}
		final = append(final, domain.FinalCriterionScore{
			CriterionID: s.CriterionID,
			FinalScore:  domain.Round4(value),
		})
	}
	audit.FinalScores = final
	audit.RecomputeTotal()
}
