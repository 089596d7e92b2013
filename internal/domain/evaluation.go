package domain

import (
	"fmt"
	"math"
	"time"
)

// PipelineVersion identifies the evaluation pipeline semantics. It is part of
// the idempotency key, so a version bump re-evaluates scripts instead of
// colliding with records produced under older semantics.
const PipelineVersion = "1.0.0"

// ScoreGranularity is the finest mark increment an evaluator may award.
const ScoreGranularity = 0.25

// MaxAdjustmentFraction bounds a consistency adjustment to a fraction of the
// criterion's maximum marks.
const MaxAdjustmentFraction = 0.25

// IdempotencyKey builds the composite key that makes one evaluation attempt
// per (run, script, question, version) effective.
func IdempotencyKey(runID, scriptID, questionID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", runID, scriptID, questionID, PipelineVersion)
}

// TokenUsage accumulates generation-service token consumption across the
// stages of one evaluation.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Add merges another usage sample into the accumulator.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total = u.Prompt + u.Completion
}

// GroundedCriterion is a rubric criterion enriched by the grounding stage with
// concrete evidence expectations. Produced without sight of the answer.
type GroundedCriterion struct {
	CriterionID            string   `json:"criterionId" validate:"required"`
	Description            string   `json:"description" validate:"required"`
	MaxMarks               float64  `json:"maxMarks" validate:"gt=0"`
	RequiredEvidencePoints []string `json:"requiredEvidencePoints" validate:"min=1"`
	IsAmbiguous            bool     `json:"isAmbiguous"`
	AmbiguityNote          string   `json:"ambiguityNote,omitempty"`
}

// GroundedRubric is the grounding stage output for a question.
type GroundedRubric struct {
	QuestionID          string              `json:"questionId" validate:"required"`
	Criteria            []GroundedCriterion `json:"criteria" validate:"min=1,dive"`
	TotalMarks          float64             `json:"totalMarks" validate:"gt=0"`
	GroundingConfidence float64             `json:"groundingConfidence" validate:"gte=0,lte=1"`
}

// Validate checks the grounded rubric structure.
func (g *GroundedRubric) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("invalid grounded rubric: %w", err)
	}
	return nil
}

// AmbiguousCriteria returns the criteria the grounding stage marked ambiguous.
func (g *GroundedRubric) AmbiguousCriteria() []string {
	var ids []string
	for _, c := range g.Criteria {
		if c.IsAmbiguous {
			ids = append(ids, c.CriterionID)
		}
	}
	return ids
}

// CriterionScore is the scoring stage output for one criterion. The
// justification quote must be verbatim answer text; an empty quote is only
// acceptable alongside zero marks.
type CriterionScore struct {
	CriterionID         string  `json:"criterionId" validate:"required"`
	MarksAwarded        float64 `json:"marksAwarded" validate:"gte=0"`
	MaxMarks            float64 `json:"maxMarks" validate:"gt=0"`
	JustificationQuote  string  `json:"justificationQuote"`
	JustificationReason string  `json:"justificationReason" validate:"required"`
	ConfidenceScore     float64 `json:"confidenceScore" validate:"gte=0,lte=1"`
}

// Validate checks score bounds and the mark granularity.
func (c *CriterionScore) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid criterion score: %w", err)
	}
	if c.MarksAwarded > c.MaxMarks {
		return fmt.Errorf("criterion %s: awarded %.2f exceeds max %.2f",
			c.CriterionID, c.MarksAwarded, c.MaxMarks)
	}
	if rem := math.Mod(c.MarksAwarded, ScoreGranularity); math.Abs(rem) > 1e-9 && math.Abs(rem-ScoreGranularity) > 1e-9 {
		return fmt.Errorf("criterion %s: awarded %.4f not a multiple of %.2f",
			c.CriterionID, c.MarksAwarded, ScoreGranularity)
	}
	return nil
}

// ConsistencyAssessment is the consistency stage's overall verdict.
type ConsistencyAssessment string

const (
	AssessmentConsistent        ConsistencyAssessment = "CONSISTENT"
	AssessmentMinorIssues       ConsistencyAssessment = "MINOR_ISSUES"
	AssessmentSignificantIssues ConsistencyAssessment = "SIGNIFICANT_ISSUES"
)

// ScoreAdjustment records a consistency-stage correction to one criterion.
type ScoreAdjustment struct {
	CriterionID      string  `json:"criterionId" validate:"required"`
	OriginalScore    float64 `json:"originalScore" validate:"gte=0"`
	RecommendedScore float64 `json:"recommendedScore" validate:"gte=0"`
	Reason           string  `json:"reason" validate:"required"`
}

// FinalCriterionScore is the per-criterion score after consistency review.
type FinalCriterionScore struct {
	CriterionID string  `json:"criterionId" validate:"required"`
	FinalScore  float64 `json:"finalScore" validate:"gte=0"`
}

// ConsistencyAudit is the consistency stage output. TotalScore is always
// recomputed by the orchestrator from FinalScores; the generated value is
// never trusted.
type ConsistencyAudit struct {
	OverallAssessment ConsistencyAssessment `json:"overallAssessment" validate:"required,oneof=CONSISTENT MINOR_ISSUES SIGNIFICANT_ISSUES"`
	Adjustments       []ScoreAdjustment     `json:"adjustments" validate:"dive"`
	FinalScores       []FinalCriterionScore `json:"finalScores" validate:"min=1,dive"`
	TotalScore        float64               `json:"totalScore" validate:"gte=0"`
	AuditNotes        string                `json:"auditNotes,omitempty"`
}

// Validate checks the audit structure.
func (a *ConsistencyAudit) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid consistency audit: %w", err)
	}
	return nil
}

// RecomputeTotal sets TotalScore to the exact sum of the final per-criterion
// scores, rounded to four decimal places.
func (a *ConsistencyAudit) RecomputeTotal() float64 {
	sum := 0.0
	for _, fs := range a.FinalScores {
		sum += fs.FinalScore
	}
	a.TotalScore = Round4(sum)
	return a.TotalScore
}

// BoundFinalScore clamps a consistency-adjusted score so it moves no more
// than MaxAdjustmentFraction of the criterion max away from the original and
// stays within [0, max].
func BoundFinalScore(original, adjusted, maxMarks float64) float64 {
	limit := MaxAdjustmentFraction * maxMarks
	if adjusted > original+limit {
		adjusted = original + limit
	}
	if adjusted < original-limit {
		adjusted = original - limit
	}
	if adjusted < 0 {
		return 0
	}
	if adjusted > maxMarks {
		return maxMarks
	}
	return adjusted
}

// ImprovementItem pairs an identified gap with a concrete suggestion.
type ImprovementItem struct {
	Gap        string `json:"gap" validate:"required"`
	Suggestion string `json:"suggestion" validate:"required"`
}

// StudentFeedback is the feedback stage output addressed to the student.
type StudentFeedback struct {
	Summary              string            `json:"summary" validate:"required"`
	Strengths            []string          `json:"strengths"`
	Improvements         []ImprovementItem `json:"improvements" validate:"dive"`
	StudyRecommendations []string          `json:"studyRecommendations"`
	EncouragementNote    string            `json:"encouragementNote,omitempty"`
}

// Validate checks the feedback structure.
func (f *StudentFeedback) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid student feedback: %w", err)
	}
	return nil
}

// ExplainabilityResult is the explainability stage output: the narrative
// reasoning trail plus the review recommendation. The recommendation and its
// reason are overwritten by the deterministic decision table after the
// generated narrative arrives.
type ExplainabilityResult struct {
	ChainOfReasoning     []string             `json:"chainOfReasoning" validate:"min=1"`
	UncertaintyAreas     []string             `json:"uncertaintyAreas"`
	ReviewRecommendation ReviewRecommendation `json:"reviewRecommendation" validate:"required,oneof=AUTO_APPROVED NEEDS_REVIEW MUST_REVIEW"`
	ReviewReason         string               `json:"reviewReason,omitempty"`
	AgentAgreementScore  float64              `json:"agentAgreementScore" validate:"gte=0,lte=1"`
}

// Validate checks the explainability structure.
func (e *ExplainabilityResult) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid explainability result: %w", err)
	}
	return nil
}

// EvaluationStatus tracks an evaluation record's lifecycle.
type EvaluationStatus string

const (
	EvaluationPending    EvaluationStatus = "PENDING"
	EvaluationComplete   EvaluationStatus = "COMPLETE"
	EvaluationOverridden EvaluationStatus = "OVERRIDDEN"
	EvaluationFailed     EvaluationStatus = "FAILED"
)

// ReviewerOverride records a human reviewer replacing the pipeline's score.
// It is the only sanctioned mutation of a COMPLETE record.
type ReviewerOverride struct {
	ReviewerID    string    `json:"reviewerId" validate:"required"`
	OverrideScore float64   `json:"overrideScore" validate:"gte=0"`
	Reason        string    `json:"reason" validate:"required"`
	OverriddenAt  time.Time `json:"overriddenAt"`
}

// EvaluationRecord is the durable, auditable outcome of evaluating one
// question of one script during one run. Its existence with status COMPLETE
// is the signal duplicate deliveries check before doing any work.
type EvaluationRecord struct {
	ID                   string                `json:"id" validate:"required"`
	RunID                string                `json:"runId" validate:"required"`
	ScriptID             string                `json:"scriptId" validate:"required"`
	QuestionID           string                `json:"questionId" validate:"required"`
	EvaluationVersion    string                `json:"evaluationVersion" validate:"required"`
	IdempotencyKey       string                `json:"idempotencyKey" validate:"required"`
	GroundedRubric       GroundedRubric        `json:"groundedRubric"`
	CriterionScores      []CriterionScore      `json:"criterionScores" validate:"min=1,dive"`
	ConsistencyAudit     ConsistencyAudit      `json:"consistencyAudit"`
	Feedback             StudentFeedback       `json:"feedback"`
	Explainability       ExplainabilityResult  `json:"explainability"`
	TotalScore           float64               `json:"totalScore" validate:"gte=0"`
	MaxPossibleScore     float64               `json:"maxPossibleScore" validate:"gt=0"`
	PercentageScore      float64               `json:"percentageScore" validate:"gte=0,lte=100"`
	ReviewRecommendation ReviewRecommendation  `json:"reviewRecommendation" validate:"required"`
	ReviewerOverride     *ReviewerOverride     `json:"reviewerOverride,omitempty"`
	Status               EvaluationStatus      `json:"status" validate:"required"`
	LatencyMs            int64                 `json:"latencyMs" validate:"gte=0"`
	TokensUsed           TokenUsage            `json:"tokensUsed"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

// Validate checks structural integrity of the record.
func (r *EvaluationRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid evaluation record: %w", err)
	}
	return nil
}

// ApplyOverride attaches a reviewer override and moves the record to
// OVERRIDDEN. The original scores remain untouched for the audit trail.
func (r *EvaluationRecord) ApplyOverride(o ReviewerOverride) error {
	if r.Status != EvaluationComplete {
		return fmt.Errorf("cannot override record in status %s", r.Status)
	}
	if err := validate.Struct(&o); err != nil {
		return fmt.Errorf("invalid reviewer override: %w", err)
	}
	if o.OverrideScore > r.MaxPossibleScore {
		return fmt.Errorf("override score %.2f exceeds max possible %.2f",
			o.OverrideScore, r.MaxPossibleScore)
	}
	r.ReviewerOverride = &o
	r.Status = EvaluationOverridden
	return nil
}

// Round4 rounds to four decimal places, the precision used for stored scores.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Round2 rounds to two decimal places, the precision used for percentages.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
