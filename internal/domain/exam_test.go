package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuestion() ExamQuestion {
	return ExamQuestion{
		QuestionID:   "q1",
		QuestionText: "Explain the function of the cell membrane.",
		MaxMarks:     5,
		Rubric: []RubricCriterion{
			{CriterionID: "c1", Description: "identifies selective permeability", MaxMarks: 2},
			{CriterionID: "c2", Description: "explains transport mechanisms", MaxMarks: 3},
		},
	}
}

func TestExamQuestionValidate(t *testing.T) {
	t.Run("valid question", func(t *testing.T) {
		q := validQuestion()
		require.NoError(t, q.Validate())
	})

	t.Run("criterion sum mismatch rejected", func(t *testing.T) {
		q := validQuestion()
		q.MaxMarks = 6
		err := q.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "criterion marks sum")
	})

	t.Run("empty rubric rejected", func(t *testing.T) {
		q := validQuestion()
		q.Rubric = nil
		assert.Error(t, q.Validate())
	})
}

func TestExamQuestionLookup(t *testing.T) {
	exam := Exam{ID: "ex1", Questions: []ExamQuestion{validQuestion()}}

	t.Run("found", func(t *testing.T) {
		q, err := exam.Question("q1")
		require.NoError(t, err)
		assert.Equal(t, "q1", q.QuestionID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := exam.Question("q404")
		assert.ErrorIs(t, err, ErrQuestionNotFound)
	})
}
