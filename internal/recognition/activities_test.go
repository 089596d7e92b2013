package recognition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/oakgrove/gradepipe/internal/blobstore"
	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/genclient"
	"github.com/oakgrove/gradepipe/internal/store"
	pkgactivity "github.com/oakgrove/gradepipe/pkg/activity"
)

// visionClient scripts RecognizeText by page path.
type visionClient struct {
	textByPath map[string]string
	err        error
	calls      int
}

var _ genclient.Client = (*visionClient)(nil)

func (v *visionClient) Complete(context.Context, string, string, genclient.Options) (*genclient.Response, error) {
	return nil, fmt.Errorf("not scripted")
}

func (v *visionClient) CompleteTyped(context.Context, string, string, *genclient.Schema, int, any) (*genclient.Response, error) {
	return nil, fmt.Errorf("not scripted")
}

func (v *visionClient) RecognizeText(_ context.Context, imagePath string) (*genclient.Response, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	text, ok := v.textByPath[imagePath]
	if !ok {
		return nil, fmt.Errorf("no script for %s", imagePath)
	}
	return &genclient.Response{Content: text, Model: "vision-model"}, nil
}

func newTestActivities(t *testing.T, client genclient.Client, maxPages int) (*Activities, store.Stores, string) {
	t.Helper()
	stores := store.NewMemoryStores()
	blobDir := t.TempDir()
	acts := NewActivities(
		pkgactivity.NewBaseActivities(nil),
		client,
		stores.Artifacts,
		stores.Pages,
		blobstore.NewLocal(blobDir),
		maxPages,
	)
	return acts, stores, blobDir
}

func seedArtifact(t *testing.T, stores store.Stores, id, blobKey, mime string) {
	t.Helper()
	require.NoError(t, stores.Artifacts.Insert(context.Background(), &domain.UploadedArtifact{
		ID: id, InstitutionID: "inst", ExamID: "ex1", BlobKey: blobKey,
		MimeType: mime, Status: domain.ArtifactUploaded,
		StudentMeta: domain.StudentMeta{StudentID: "stu1"},
	}))
}

func TestIngestArtifact(t *testing.T) {
	ctx := context.Background()

	t.Run("single image passes through", func(t *testing.T) {
		acts, stores, blobDir := newTestActivities(t, &visionClient{}, 5)
		require.NoError(t, os.WriteFile(filepath.Join(blobDir, "scan.png"), []byte("img"), 0o600))
		seedArtifact(t, stores, "art1", "scan.png", "image/png")

		out, err := acts.IngestArtifact(ctx, IngestArtifactInput{ArtifactID: "art1", TraceID: "t1"})
		require.NoError(t, err)
		assert.Equal(t, 1, out.PageCount)
		require.Len(t, out.PagePaths, 1)

		a, err := stores.Artifacts.FindByID(ctx, "art1")
		require.NoError(t, err)
		assert.Equal(t, domain.ArtifactProcessing, a.Status)
		assert.Equal(t, 1, a.PageCount)
	})

	t.Run("page ceiling fails fast and is not retried", func(t *testing.T) {
		acts, stores, blobDir := newTestActivities(t, &visionClient{}, 0)
		require.NoError(t, os.WriteFile(filepath.Join(blobDir, "scan.png"), []byte("img"), 0o600))
		seedArtifact(t, stores, "art2", "scan.png", "image/png")

		_, err := acts.IngestArtifact(ctx, IngestArtifactInput{ArtifactID: "art2", TraceID: "t1"})
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())

		a, err := stores.Artifacts.FindByID(ctx, "art2")
		require.NoError(t, err)
		assert.Equal(t, domain.ArtifactFailed, a.Status)
		assert.Contains(t, a.FailureReason, "exceeds limit")
	})

	t.Run("unknown artifact is non-retryable", func(t *testing.T) {
		acts, _, _ := newTestActivities(t, &visionClient{}, 5)
		_, err := acts.IngestArtifact(ctx, IngestArtifactInput{ArtifactID: "nope", TraceID: "t1"})
		var appErr *temporal.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())
	})
}

func TestRecognizePage(t *testing.T) {
	ctx := context.Background()

	t.Run("clean page stored with estimated confidence", func(t *testing.T) {
		client := &visionClient{textByPath: map[string]string{
			"/tmp/p1.png": "The cell membrane regulates transport into the cell",
		}}
		acts, stores, _ := newTestActivities(t, client, 5)
		seedArtifact(t, stores, "art1", "k", "image/png")

		out, err := acts.RecognizePage(ctx, RecognizePageInput{
			ArtifactID: "art1", PageNumber: 1, PagePath: "/tmp/p1.png", TraceID: "t1",
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.95, out.Confidence, 1e-9)
		assert.Empty(t, out.QualityFlags)

		pages, err := stores.Pages.FindByArtifact(ctx, "art1")
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, "vision-model", pages[0].Provider)
	})

	t.Run("heavy illegibility gets flagged", func(t *testing.T) {
		client := &visionClient{textByPath: map[string]string{
			"/tmp/p1.png": "[illegible] [illegible] the answer is [illegible] words more",
		}}
		acts, stores, _ := newTestActivities(t, client, 5)
		seedArtifact(t, stores, "art1", "k", "image/png")

		out, err := acts.RecognizePage(ctx, RecognizePageInput{
			ArtifactID: "art1", PageNumber: 1, PagePath: "/tmp/p1.png", TraceID: "t1",
		})
		require.NoError(t, err)
		assert.Less(t, out.Confidence, domain.LowConfidenceThreshold)
		assert.Contains(t, out.QualityFlags, domain.FlagLowConfidence)
	})

	t.Run("duplicate delivery returns stored result without a new call", func(t *testing.T) {
		client := &visionClient{textByPath: map[string]string{
			"/tmp/p1.png": "clean text on the page",
		}}
		acts, stores, _ := newTestActivities(t, client, 5)
		seedArtifact(t, stores, "art1", "k", "image/png")

		in := RecognizePageInput{ArtifactID: "art1", PageNumber: 1, PagePath: "/tmp/p1.png", TraceID: "t1"}
		first, err := acts.RecognizePage(ctx, in)
		require.NoError(t, err)

		second, err := acts.RecognizePage(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, first.Confidence, second.Confidence)
		assert.Equal(t, 1, client.calls)

		pages, err := stores.Pages.FindByArtifact(ctx, "art1")
		require.NoError(t, err)
		assert.Len(t, pages, 1)
	})

	t.Run("transport failure is retryable", func(t *testing.T) {
		client := &visionClient{err: &genclient.TransportError{StatusCode: 503, Cause: errors.New("down")}}
		acts, stores, _ := newTestActivities(t, client, 5)
		seedArtifact(t, stores, "art1", "k", "image/png")

		_, err := acts.RecognizePage(ctx, RecognizePageInput{
			ArtifactID: "art1", PageNumber: 1, PagePath: "/tmp/p1.png", TraceID: "t1",
		})
		var appErr *temporal.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.False(t, appErr.NonRetryable())
	})
}

func TestAggregatePages(t *testing.T) {
	ctx := context.Background()

	t.Run("three pages aggregate in order with mean confidence and flag union", func(t *testing.T) {
		acts, stores, _ := newTestActivities(t, &visionClient{}, 5)
		seedArtifact(t, stores, "art1", "k", "application/pdf")

		require.NoError(t, stores.Pages.Insert(ctx, &domain.PageRecognitionResult{
			ArtifactID: "art1", PageNumber: 2, Text: "page two", Confidence: 0.95,
		}))
		require.NoError(t, stores.Pages.Insert(ctx, &domain.PageRecognitionResult{
			ArtifactID: "art1", PageNumber: 3, Text: "page three", Confidence: 0.35,
			QualityFlags: []domain.QualityFlag{domain.FlagLowConfidence},
		}))
		require.NoError(t, stores.Pages.Insert(ctx, &domain.PageRecognitionResult{
			ArtifactID: "art1", PageNumber: 1, Text: "page one", Confidence: 0.95,
		}))

		out, err := acts.AggregatePages(ctx, AggregatePagesInput{ArtifactID: "art1", TraceID: "t1"})
		require.NoError(t, err)
		assert.Equal(t, "page one\n\npage two\n\npage three", out.FullText)
		assert.InDelta(t, 0.75, out.AvgConfidence, 1e-9)
		assert.Equal(t, []domain.QualityFlag{domain.FlagLowConfidence}, out.QualityFlags)

		a, err := stores.Artifacts.FindByID(ctx, "art1")
		require.NoError(t, err)
		assert.Equal(t, domain.ArtifactOCRComplete, a.Status)
	})

	t.Run("no usable text fails the artifact", func(t *testing.T) {
		acts, stores, _ := newTestActivities(t, &visionClient{}, 5)
		seedArtifact(t, stores, "art1", "k", "application/pdf")
		require.NoError(t, stores.Pages.Insert(ctx, &domain.PageRecognitionResult{
			ArtifactID: "art1", PageNumber: 1, Text: "   ", Confidence: 0,
		}))

		_, err := acts.AggregatePages(ctx, AggregatePagesInput{ArtifactID: "art1", TraceID: "t1"})
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.True(t, errors.As(err, &appErr))
		assert.True(t, appErr.NonRetryable())

		a, err := stores.Artifacts.FindByID(ctx, "art1")
		require.NoError(t, err)
		assert.Equal(t, domain.ArtifactFailed, a.Status)
	})
}
