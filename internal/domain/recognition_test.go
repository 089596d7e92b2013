package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateConfidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "empty text", text: "", want: 0.0},
		{name: "whitespace only", text: "   \n\t ", want: 0.0},
		{name: "clean text", text: "The mitochondria is the powerhouse of the cell", want: 0.95},
		{
			name: "one illegible in ten words",
			// 10 words, 1 marker: 1 - 2*(1/10) = 0.8
			text: "The [illegible] is the powerhouse of the cell we studied",
			want: 0.8,
		},
		{
			name: "mostly illegible floors at zero",
			text: "[illegible] [illegible] [illegible] word",
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EstimateConfidence(tt.text), 1e-9)
		})
	}
}

func TestSummarizePages(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		sum := SummarizePages(nil)
		assert.Zero(t, sum.PageCount)
		assert.Empty(t, sum.FullText)
	})

	t.Run("three pages out of order", func(t *testing.T) {
		pages := []PageRecognitionResult{
			{ArtifactID: "a1", PageNumber: 3, Text: "page three", Confidence: 0.35,
				QualityFlags: []QualityFlag{FlagLowConfidence, FlagBlurry}},
			{ArtifactID: "a1", PageNumber: 1, Text: "page one", Confidence: 0.95},
			{ArtifactID: "a1", PageNumber: 2, Text: "page two", Confidence: 0.95,
				QualityFlags: []QualityFlag{FlagBlurry}},
		}

		sum := SummarizePages(pages)

		require.Equal(t, 3, sum.PageCount)
		assert.Equal(t, "page one\n\npage two\n\npage three", sum.FullText)
		assert.InDelta(t, 0.75, sum.AvgConfidence, 1e-9)
		assert.Equal(t, []QualityFlag{FlagBlurry, FlagLowConfidence}, sum.QualityFlags)
	})

	t.Run("does not mutate caller slice order", func(t *testing.T) {
		pages := []PageRecognitionResult{
			{ArtifactID: "a1", PageNumber: 2, Text: "b", Confidence: 0.5},
			{ArtifactID: "a1", PageNumber: 1, Text: "a", Confidence: 0.5},
		}
		_ = SummarizePages(pages)
		assert.Equal(t, 2, pages[0].PageNumber)
	})
}
