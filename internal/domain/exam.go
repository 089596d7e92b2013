package domain

import (
	"fmt"
	"math"
)

// RubricCriterion is one marking dimension of a question. Criteria within a
// question are ordered, non-overlapping, and each carries a positive mark
// allocation.
type RubricCriterion struct {
	CriterionID string  `json:"criterionId" validate:"required"`
	Description string  `json:"description" validate:"required"`
	MaxMarks    float64 `json:"maxMarks" validate:"gt=0"`
}

// ExamQuestion is a read-only question definition with its marking rubric.
type ExamQuestion struct {
	QuestionID   string            `json:"questionId" validate:"required"`
	QuestionText string            `json:"questionText" validate:"required"`
	MaxMarks     float64           `json:"maxMarks" validate:"gt=0"`
	Rubric       []RubricCriterion `json:"rubric" validate:"min=1,dive"`
}

// CriterionMarksSum returns the total marks across the question's criteria.
// The per-criterion allocations are authoritative; a mismatch with the stated
// question MaxMarks is a data-entry defect surfaced by Validate.
func (q *ExamQuestion) CriterionMarksSum() float64 {
	sum := 0.0
	for _, c := range q.Rubric {
		sum += c.MaxMarks
	}
	return sum
}

// Validate checks the question structure and that the criterion marks add up
// to the stated maximum. The sum comparison tolerates float representation
// noise only.
func (q *ExamQuestion) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid exam question: %w", err)
	}
	if sum := q.CriterionMarksSum(); math.Abs(sum-q.MaxMarks) > 1e-9 {
		return fmt.Errorf("question %s: criterion marks sum %.4f does not match stated max %.4f",
			q.QuestionID, sum, q.MaxMarks)
	}
	return nil
}

// Exam is the read-only exam definition scripts are evaluated against.
type Exam struct {
	ID        string         `json:"id" validate:"required"`
	Title     string         `json:"title"`
	Questions []ExamQuestion `json:"questions" validate:"min=1,dive"`
}

// Validate checks the exam and every question within it.
func (e *Exam) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid exam: %w", err)
	}
	for i := range e.Questions {
		if err := e.Questions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Question returns the question definition for the given id.
func (e *Exam) Question(questionID string) (*ExamQuestion, error) {
	for i := range e.Questions {
		if e.Questions[i].QuestionID == questionID {
			return &e.Questions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
}
