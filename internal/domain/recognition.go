package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// QualityFlag marks a recognition quality concern on a page or script.
type QualityFlag string

const (
	FlagLowConfidence QualityFlag = "LOW_CONFIDENCE"
	FlagSkewed        QualityFlag = "SKEWED"
	FlagBlurry        QualityFlag = "BLURRY"
)

// LowConfidenceThreshold is the confidence below which a page is flagged
// LOW_CONFIDENCE and surfaced for human review downstream.
const LowConfidenceThreshold = 0.65

// illegibleMarker is the token the recognition model emits for unreadable
// words. The confidence estimate counts these against the page.
const illegibleMarker = "[illegible]"

// PageRecognitionResult is the immutable output of recognizing a single page.
// Keyed by (artifact id, page number); re-recognizing a page never mutates an
// existing result, duplicate deliveries are absorbed by the store.
type PageRecognitionResult struct {
	ArtifactID   string        `json:"artifactId" validate:"required"`
	PageNumber   int           `json:"pageNumber" validate:"gte=1"`
	Text         string        `json:"text"`
	Confidence   float64       `json:"confidence" validate:"gte=0,lte=1"`
	QualityFlags []QualityFlag `json:"qualityFlags"`
	Provider     string        `json:"provider"`
	ProcessingMs int64         `json:"processingMs" validate:"gte=0"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Validate checks structural integrity of a page result.
func (p *PageRecognitionResult) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid page recognition result: %w", err)
	}
	return nil
}

// EstimateConfidence derives a [0,1] confidence for recognized page text from
// the density of illegible markers:
//
//	no words            -> 0.0
//	no illegible marker -> 0.95
//	otherwise           -> max(0, 1 - 2*illegible/words)
//
// The recognition provider does not report confidence itself, so the marker
// density is the only observable signal.
func EstimateConfidence(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0.0
	}
	illegible := strings.Count(strings.ToLower(text), illegibleMarker)
	if illegible == 0 {
		return 0.95
	}
	conf := 1.0 - 2.0*float64(illegible)/float64(len(words))
	if conf < 0 {
		return 0.0
	}
	return conf
}

// PageSummary is the aggregate of all page results for one artifact:
// full text joined in page order, mean confidence, and the union of flags.
type PageSummary struct {
	FullText      string        `json:"fullText"`
	AvgConfidence float64       `json:"avgConfidence"`
	QualityFlags  []QualityFlag `json:"qualityFlags"`
	PageCount     int           `json:"pageCount"`
}

// SummarizePages combines per-page results into a script-level summary.
// Pages are ordered by page number regardless of arrival order, texts are
// joined with a blank line, confidence is the arithmetic mean, and quality
// flags are the set union in first-seen order.
func SummarizePages(pages []PageRecognitionResult) PageSummary {
	if len(pages) == 0 {
		return PageSummary{}
	}

	ordered := make([]PageRecognitionResult, len(pages))
	copy(ordered, pages)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PageNumber < ordered[j].PageNumber
	})

	texts := make([]string, 0, len(ordered))
	sum := 0.0
	seen := make(map[QualityFlag]struct{})
	var flags []QualityFlag
	for _, p := range ordered {
		texts = append(texts, p.Text)
		sum += p.Confidence
		for _, f := range p.QualityFlags {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			flags = append(flags, f)
		}
	}

	return PageSummary{
		FullText:      strings.Join(texts, "\n\n"),
		AvgConfidence: sum / float64(len(ordered)),
		QualityFlags:  flags,
		PageCount:     len(ordered),
	}
}
