package segmentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/oakgrove/gradepipe/internal/agents"
	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/genclient"
	"github.com/oakgrove/gradepipe/internal/store"
	pkgactivity "github.com/oakgrove/gradepipe/pkg/activity"
)

// scriptedClient returns one canned structured response.
type scriptedClient struct {
	response string
	err      error
}

var _ genclient.Client = (*scriptedClient)(nil)

func (s *scriptedClient) Complete(context.Context, string, string, genclient.Options) (*genclient.Response, error) {
	return nil, fmt.Errorf("not scripted")
}

func (s *scriptedClient) RecognizeText(context.Context, string) (*genclient.Response, error) {
	return nil, fmt.Errorf("not scripted")
}

func (s *scriptedClient) CompleteTyped(_ context.Context, _, _ string, schema *genclient.Schema, _ int, out any) (*genclient.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := schema.Validate([]byte(s.response)); err != nil {
		return nil, &genclient.GenerationError{Cause: err}
	}
	if err := json.Unmarshal([]byte(s.response), out); err != nil {
		return nil, &genclient.GenerationError{Cause: err}
	}
	return &genclient.Response{Content: s.response, Usage: domain.TokenUsage{Prompt: 20, Completion: 10, Total: 30}}, nil
}

func setup(t *testing.T, client genclient.Client) (*Activities, store.Stores) {
	t.Helper()
	stores := store.NewMemoryStores()
	acts := NewActivities(
		pkgactivity.NewBaseActivities(nil),
		agents.NewChain(client, 2),
		stores.Artifacts,
		stores.Exams,
	)

	ctx := context.Background()
	require.NoError(t, stores.Artifacts.Insert(ctx, &domain.UploadedArtifact{
		ID: "art1", InstitutionID: "inst", ExamID: "ex1", BlobKey: "k",
		Status: domain.ArtifactOCRComplete,
		StudentMeta: domain.StudentMeta{StudentID: "stu1"},
	}))
	stores.Exams.(*store.MemoryExams).Seed(domain.Exam{
		ID: "ex1",
		Questions: []domain.ExamQuestion{
			{QuestionID: "q1", QuestionText: "Define osmosis.", MaxMarks: 2,
				Rubric: []domain.RubricCriterion{{CriterionID: "c1", Description: "definition", MaxMarks: 2}}},
			{QuestionID: "q2", QuestionText: "Explain mitosis.", MaxMarks: 3,
				Rubric: []domain.RubricCriterion{{CriterionID: "c1", Description: "phases", MaxMarks: 3}}},
		},
	})
	return acts, stores
}

func TestSegmentAnswers(t *testing.T) {
	ctx := context.Background()

	t.Run("maps transcript and marks artifact segmented", func(t *testing.T) {
		acts, stores := setup(t, &scriptedClient{response: `{
			"answers": [
				{"questionId": "q1", "answerText": "osmosis is water movement"},
				{"questionId": "q2", "answerText": null}
			],
			"unmappedText": "",
			"segmentationConfidence": 0.82,
			"notes": "q2 not found"
		}`})

		out, err := acts.SegmentAnswers(ctx, SegmentAnswersInput{
			ArtifactID: "art1", FullText: "Q1 osmosis is water movement", TraceID: "t1",
		})
		require.NoError(t, err)
		require.Len(t, out.Result.Answers, 2)
		assert.Nil(t, out.Result.Answers[1].AnswerText)
		assert.Equal(t, 30, out.Usage.Total)

		a, err := stores.Artifacts.FindByID(ctx, "art1")
		require.NoError(t, err)
		assert.Equal(t, domain.ArtifactSegmented, a.Status)
	})

	t.Run("missing exam is a non-retryable segmentation error", func(t *testing.T) {
		acts, stores := setup(t, &scriptedClient{response: "{}"})
		require.NoError(t, stores.Artifacts.Insert(ctx, &domain.UploadedArtifact{
			ID: "art2", InstitutionID: "inst", ExamID: "missing-exam", BlobKey: "k",
			Status: domain.ArtifactOCRComplete,
			StudentMeta: domain.StudentMeta{StudentID: "stu1"},
		}))

		_, err := acts.SegmentAnswers(ctx, SegmentAnswersInput{
			ArtifactID: "art2", FullText: "text", TraceID: "t1",
		})
		require.Error(t, err)
		var appErr *temporal.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())
		assert.Equal(t, errTagSegmentation, appErr.Type())
	})

	t.Run("transport failure is retryable", func(t *testing.T) {
		acts, _ := setup(t, &scriptedClient{err: &genclient.TransportError{Cause: errors.New("timeout")}})

		_, err := acts.SegmentAnswers(ctx, SegmentAnswersInput{
			ArtifactID: "art1", FullText: "text", TraceID: "t1",
		})
		require.Error(t, err)
		var appErr *temporal.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.False(t, appErr.NonRetryable())
	})
}
