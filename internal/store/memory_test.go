package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakgrove/gradepipe/internal/domain"
)

func TestMemoryScriptsUniquenessPerArtifact(t *testing.T) {
	ctx := context.Background()
	scripts := NewMemoryScripts()

	first := &domain.Script{
		ID: "s1", InstitutionID: "inst", ExamID: "ex1", ArtifactID: "art1",
		Source: domain.SourceOCR, Status: domain.ScriptEvaluating,
	}
	require.NoError(t, scripts.Insert(ctx, first))

	t.Run("duplicate artifact rejected", func(t *testing.T) {
		dup := &domain.Script{
			ID: "s2", InstitutionID: "inst", ExamID: "ex1", ArtifactID: "art1",
			Source: domain.SourceOCR, Status: domain.ScriptEvaluating,
		}
		assert.ErrorIs(t, scripts.Insert(ctx, dup), domain.ErrDuplicateScript)

		// The original survives.
		got, err := scripts.FindByArtifact(ctx, "art1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
	})

	t.Run("concurrent inserts yield exactly one script", func(t *testing.T) {
		fresh := NewMemoryScripts()
		var wg sync.WaitGroup
		var okCount, dupCount sync.Map
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				err := fresh.Insert(ctx, &domain.Script{
					ID: "s" + string(rune('a'+n)), InstitutionID: "inst",
					ExamID: "ex1", ArtifactID: "art9",
					Source: domain.SourceOCR, Status: domain.ScriptEvaluating,
				})
				if err != nil {
					dupCount.Store(n, true)
				} else {
					okCount.Store(n, true)
				}
			}(i)
		}
		wg.Wait()

		wins := 0
		okCount.Range(func(_, _ any) bool { wins++; return true })
		assert.Equal(t, 1, wins)
	})
}

func TestMemoryPagesAbsorbDuplicates(t *testing.T) {
	ctx := context.Background()
	pages := NewMemoryPages()

	require.NoError(t, pages.Insert(ctx, &domain.PageRecognitionResult{
		ArtifactID: "art1", PageNumber: 1, Text: "first write", Confidence: 0.9,
	}))
	require.NoError(t, pages.Insert(ctx, &domain.PageRecognitionResult{
		ArtifactID: "art1", PageNumber: 1, Text: "duplicate delivery", Confidence: 0.5,
	}))

	got, err := pages.FindByArtifact(ctx, "art1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first write", got[0].Text)

	exists, err := pages.Exists(ctx, "art1", 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryArtifactsStatusAndTimestamps(t *testing.T) {
	ctx := context.Background()
	artifacts := NewMemoryArtifacts()

	a := &domain.UploadedArtifact{
		ID: "art1", InstitutionID: "inst", ExamID: "ex1", BlobKey: "k",
		Status: domain.ArtifactUploaded,
		StudentMeta: domain.StudentMeta{StudentID: "stu1"},
	}
	require.NoError(t, artifacts.Insert(ctx, a))

	before, err := artifacts.FindByID(ctx, "art1")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	require.NoError(t, artifacts.SetStatus(ctx, "art1", domain.ArtifactFailed, "page limit"))

	after, err := artifacts.FindByID(ctx, "art1")
	require.NoError(t, err)
	assert.Equal(t, domain.ArtifactFailed, after.Status)
	assert.Equal(t, "page limit", after.FailureReason)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	// Leaving FAILED clears the reason.
	require.NoError(t, artifacts.SetStatus(ctx, "art1", domain.ArtifactProcessing, ""))
	cleared, err := artifacts.FindByID(ctx, "art1")
	require.NoError(t, err)
	assert.Empty(t, cleared.FailureReason)
}

func TestMemoryRecords(t *testing.T) {
	ctx := context.Background()
	records := NewMemoryRecords()
	key := domain.IdempotencyKey("run1", "s1", "q1")

	_, err := records.FindByKey(ctx, key)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	require.NoError(t, records.Insert(ctx, &domain.EvaluationRecord{
		ID: "r1", RunID: "run1", ScriptID: "s1", QuestionID: "q1",
		EvaluationVersion: domain.PipelineVersion, IdempotencyKey: key,
		Status: domain.EvaluationComplete,
	}))
	require.NoError(t, records.Insert(ctx, &domain.EvaluationRecord{
		ID: "r2", RunID: "run1", ScriptID: "s1", QuestionID: "q2",
		EvaluationVersion: domain.PipelineVersion,
		IdempotencyKey:    domain.IdempotencyKey("run1", "s1", "q2"),
		Status:            domain.EvaluationComplete,
	}))

	got, err := records.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)

	byScript, err := records.FindByScript(ctx, "s1", ListOptions{SortField: "questionId", SortAsc: true})
	require.NoError(t, err)
	require.Len(t, byScript, 2)
	assert.Equal(t, "q1", byScript[0].QuestionID)

	limited, err := records.FindByScript(ctx, "s1", ListOptions{SortField: "questionId", SortAsc: true, Skip: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "q2", limited[0].QuestionID)
}
