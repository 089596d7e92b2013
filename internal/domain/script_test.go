package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptEvaluableQuestionIDs(t *testing.T) {
	s := Script{
		Answers: []ScriptAnswer{
			{QuestionID: "q1", Text: "photosynthesis converts light energy"},
			{QuestionID: "q2", Text: "", IsFlagged: true},
			{QuestionID: "q3", Text: "   "},
			{QuestionID: "q4", Text: "mitosis has four phases"},
		},
	}

	assert.Equal(t, []string{"q1", "q4"}, s.EvaluableQuestionIDs())
	assert.True(t, s.HasFlaggedAnswers())
}

func TestScriptAnswerLookup(t *testing.T) {
	s := Script{Answers: []ScriptAnswer{{QuestionID: "q1", Text: "x"}}}

	a, err := s.Answer("q1")
	require.NoError(t, err)
	assert.Equal(t, "x", a.Text)

	_, err = s.Answer("q9")
	assert.ErrorIs(t, err, ErrAnswerNotFound)
}

func TestSegmentationResultValidate(t *testing.T) {
	text := "an answer"
	expected := []string{"q1", "q2"}

	t.Run("every question exactly once", func(t *testing.T) {
		r := SegmentationResult{
			Answers: []SegmentedAnswer{
				{QuestionID: "q1", AnswerText: &text},
				{QuestionID: "q2", AnswerText: nil},
			},
			SegmentationConfidence: 0.8,
		}
		require.NoError(t, r.Validate(expected))
	})

	t.Run("missing question rejected", func(t *testing.T) {
		r := SegmentationResult{
			Answers:                []SegmentedAnswer{{QuestionID: "q1", AnswerText: &text}},
			SegmentationConfidence: 0.8,
		}
		assert.Error(t, r.Validate(expected))
	})

	t.Run("repeated question rejected", func(t *testing.T) {
		r := SegmentationResult{
			Answers: []SegmentedAnswer{
				{QuestionID: "q1", AnswerText: &text},
				{QuestionID: "q1", AnswerText: &text},
				{QuestionID: "q2", AnswerText: nil},
			},
			SegmentationConfidence: 0.8,
		}
		assert.Error(t, r.Validate(expected))
	})

	t.Run("unknown question rejected", func(t *testing.T) {
		r := SegmentationResult{
			Answers: []SegmentedAnswer{
				{QuestionID: "q1", AnswerText: &text},
				{QuestionID: "q2", AnswerText: nil},
				{QuestionID: "q99", AnswerText: &text},
			},
			SegmentationConfidence: 0.8,
		}
		assert.Error(t, r.Validate(expected))
	})
}
