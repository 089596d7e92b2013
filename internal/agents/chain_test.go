package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakgrove/gradepipe/internal/domain"
)

func chainQuestion() *domain.ExamQuestion {
	return &domain.ExamQuestion{
		QuestionID:   "q1",
		QuestionText: "Explain the function of the cell membrane.",
		MaxMarks:     5,
		Rubric: []domain.RubricCriterion{
			{CriterionID: "c1", Description: "identifies selective permeability", MaxMarks: 2},
			{CriterionID: "c2", Description: "explains transport mechanisms", MaxMarks: 3},
		},
	}
}

const groundingResponse = `{
	"questionId": "q1",
	"criteria": [
		{"criterionId": "c1", "description": "identifies selective permeability", "maxMarks": 2,
		 "requiredEvidencePoints": ["names selective permeability"], "isAmbiguous": false},
		{"criterionId": "c2", "description": "explains transport mechanisms", "maxMarks": 3,
		 "requiredEvidencePoints": ["describes active transport", "describes diffusion"], "isAmbiguous": false}
	],
	"totalMarks": 5,
	"groundingConfidence": 0.92
}`

const scoreC1 = `{
	"criterionId": "c1", "marksAwarded": 1.5, "maxMarks": 2,
	"justificationQuote": "the membrane lets some things through",
	"justificationReason": "names the idea without the term",
	"confidenceScore": 0.9
}`

const scoreC2 = `{
	"criterionId": "c2", "marksAwarded": 2.5, "maxMarks": 3,
	"justificationQuote": "particles move from high to low concentration",
	"justificationReason": "diffusion described, active transport missing",
	"confidenceScore": 0.88
}`

const feedbackResponse = `{
	"summary": "A solid answer covering most of the transport concepts.",
	"strengths": ["described diffusion accurately"],
	"improvements": [{"criterionId": "c2", "gap": "active transport not covered", "suggestion": "review pump-mediated transport"}],
	"studyRecommendations": ["sodium-potassium pump mechanics"],
	"encouragementNote": "Your grasp of diffusion is a strong base to build on."
}`

const explainabilityResponse = `{
	"chainOfReasoning": ["Rubric was clear.", "c1 scored 1.5 of 2 on a partial definition.", "c2 scored 2.5 of 3 missing active transport."],
	"uncertaintyAreas": [],
	"reviewRecommendation": "MUST_REVIEW",
	"reviewReason": "model-chosen value, must be replaced",
	"agentAgreementScore": 0.93
}`

func TestChainEvaluateAnswer(t *testing.T) {
	consistency := `{
		"overallAssessment": "CONSISTENT",
		"adjustments": [],
		"finalScores": [
			{"criterionId": "c1", "finalScore": 1.5},
			{"criterionId": "c2", "finalScore": 2.5}
		],
		"totalScore": 99,
		"auditNotes": "scores align with justifications"
	}`

	client := &mockClient{responses: []string{
		groundingResponse, scoreC1, scoreC2, consistency, feedbackResponse, explainabilityResponse,
	}}
	chain := NewChain(client, 2)

	result, err := chain.EvaluateAnswer(context.Background(), chainQuestion(), "the membrane lets some things through; particles move from high to low concentration")
	require.NoError(t, err)

	// Total is the exact sum of final scores, not the generated 99.
	assert.InDelta(t, 4.0, result.TotalScore, 1e-9)
	assert.InDelta(t, 5.0, result.MaxPossibleScore, 1e-9)
	assert.InDelta(t, 80.0, result.PercentageScore, 1e-9)

	// Clean signals: the decision table overrides the model's MUST_REVIEW.
	assert.Equal(t, domain.ReviewAutoApproved, result.ReviewRecommendation)
	assert.Equal(t, domain.ReviewAutoApproved, result.Explainability.ReviewRecommendation)
	assert.NotEqual(t, "model-chosen value, must be replaced", result.Explainability.ReviewReason)

	// Six calls, 15 tokens each.
	assert.Equal(t, 90, result.Usage.Total)
}

func TestChainClampsConsistencyAdjustments(t *testing.T) {
	consistency := `{
		"overallAssessment": "MINOR_ISSUES",
		"adjustments": [
			{"criterionId": "c1", "originalScore": 1.5, "recommendedScore": 3.0, "reason": "quote shows full understanding"}
		],
		"finalScores": [
			{"criterionId": "c1", "finalScore": 3.0},
			{"criterionId": "c2", "finalScore": 2.5}
		],
		"totalScore": 5.5,
		"auditNotes": "c1 under-scored"
	}`

	client := &mockClient{responses: []string{
		groundingResponse, scoreC1, scoreC2, consistency, feedbackResponse, explainabilityResponse,
	}}
	chain := NewChain(client, 2)

	result, err := chain.EvaluateAnswer(context.Background(), chainQuestion(), "answer text")
	require.NoError(t, err)

	// 3.0 exceeds both the +25%-of-max band (1.5+0.5) and c1's max of 2.
	require.Len(t, result.ConsistencyAudit.Adjustments, 1)
	assert.InDelta(t, 2.0, result.ConsistencyAudit.Adjustments[0].RecommendedScore, 1e-9)
	assert.InDelta(t, 2.0, result.ConsistencyAudit.FinalScores[0].FinalScore, 1e-9)
	assert.InDelta(t, 4.5, result.TotalScore, 1e-9)

	// An adjustment plus MINOR_ISSUES blocks auto-approval.
	assert.Equal(t, domain.ReviewNeeded, result.ReviewRecommendation)
}

func TestChainStageFailureAborts(t *testing.T) {
	client := &mockClient{
		responses: []string{groundingResponse, scoreC1},
		failAt:    map[int]error{2: assert.AnError},
	}
	chain := NewChain(client, 2)

	_, err := chain.EvaluateAnswer(context.Background(), chainQuestion(), "answer text")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestChainSegmentAnswers(t *testing.T) {
	questions := []domain.ExamQuestion{
		{QuestionID: "q1", QuestionText: "Define osmosis.", MaxMarks: 2,
			Rubric: []domain.RubricCriterion{{CriterionID: "c1", Description: "definition", MaxMarks: 2}}},
		{QuestionID: "q2", QuestionText: "Explain mitosis.", MaxMarks: 3,
			Rubric: []domain.RubricCriterion{{CriterionID: "c1", Description: "phases", MaxMarks: 3}}},
	}

	t.Run("missing answer arrives as null", func(t *testing.T) {
		client := &mockClient{responses: []string{`{
			"answers": [
				{"questionId": "q1", "answerText": "Q1. osmosis is water movement across a membrane"},
				{"questionId": "q2", "answerText": null}
			],
			"unmappedText": "Roll No: 42",
			"segmentationConfidence": 0.85,
			"notes": "no answer found for q2"
		}`}}

		result, usage, err := NewChain(client, 2).SegmentAnswers(context.Background(), questions, "raw transcript")
		require.NoError(t, err)
		require.Len(t, result.Answers, 2)
		require.NotNil(t, result.Answers[0].AnswerText)
		assert.Nil(t, result.Answers[1].AnswerText)
		assert.Equal(t, "Roll No: 42", result.UnmappedText)
		assert.Equal(t, 15, usage.Total)
	})

	t.Run("result omitting a question is rejected", func(t *testing.T) {
		client := &mockClient{responses: []string{`{
			"answers": [{"questionId": "q1", "answerText": "something"}],
			"segmentationConfidence": 0.9
		}`}}

		_, _, err := NewChain(client, 2).SegmentAnswers(context.Background(), questions, "raw transcript")
		assert.Error(t, err)
	})
}
