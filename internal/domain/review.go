package domain

import "fmt"

// ReviewRecommendation is the three-tier routing decision attached to every
// evaluation record.
type ReviewRecommendation string

const (
	ReviewAutoApproved ReviewRecommendation = "AUTO_APPROVED"
	ReviewNeeded       ReviewRecommendation = "NEEDS_REVIEW"
	ReviewMandatory    ReviewRecommendation = "MUST_REVIEW"
)

// Review decision thresholds. An evaluation auto-approves only when every
// signal is clean; any strong doubt signal forces mandatory review.
const (
	autoApproveMinConfidence = 0.85
	mandatoryMaxConfidence   = 0.60
	mandatoryAdjustmentCount = 3
	mandatoryAmbiguityCount  = 2
	autoApproveMinPercent    = 30.0
	autoApproveMaxPercent    = 90.0
)

// ReviewSignals gathers the facts the review decision is made from. All
// fields come from completed stage outputs; none involve a further judgment
// call.
type ReviewSignals struct {
	// MinStageConfidence is the lowest confidence reported by any stage:
	// grounding, the per-criterion scores, and agent agreement.
	MinStageConfidence float64

	// Assessment is the consistency stage's overall verdict.
	Assessment ConsistencyAssessment

	// AdjustmentCount is the number of consistency adjustments applied.
	AdjustmentCount int

	// AmbiguousCriteria is the number of criteria grounding marked ambiguous.
	AmbiguousCriteria int

	// PercentageScore is the final score as a percentage of the maximum.
	PercentageScore float64
}

// RecommendReview maps evaluation signals to a review tier via a fixed
// decision table. Mandatory conditions are checked first, then the
// auto-approval gate; everything in between lands in NEEDS_REVIEW.
func RecommendReview(s ReviewSignals) (ReviewRecommendation, string) {
	switch {
	case s.MinStageConfidence < mandatoryMaxConfidence:
		return ReviewMandatory, fmt.Sprintf("stage confidence %.2f below %.2f", s.MinStageConfidence, mandatoryMaxConfidence)
	case s.Assessment == AssessmentSignificantIssues:
		return ReviewMandatory, "consistency audit found significant issues"
	case s.AdjustmentCount >= mandatoryAdjustmentCount:
		return ReviewMandatory, fmt.Sprintf("%d score adjustments applied", s.AdjustmentCount)
	case s.AmbiguousCriteria >= mandatoryAmbiguityCount:
		return ReviewMandatory, fmt.Sprintf("%d ambiguous rubric criteria", s.AmbiguousCriteria)
	}

	if s.MinStageConfidence >= autoApproveMinConfidence &&
		s.Assessment == AssessmentConsistent &&
		s.AdjustmentCount == 0 &&
		s.AmbiguousCriteria == 0 &&
		s.PercentageScore >= autoApproveMinPercent &&
		s.PercentageScore <= autoApproveMaxPercent {
		return ReviewAutoApproved, "all signals within auto-approval bounds"
	}

	return ReviewNeeded, "signals outside auto-approval bounds"
}
