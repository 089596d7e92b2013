package agents

import "github.com/oakgrove/gradepipe/internal/genclient"

// Output schemas for each stage, compiled once at package load. These are
// the hard contract; the instructions in prompts.go restate them for the
// model's benefit.

var groundingSchema = genclient.MustCompileSchema(map[string]any{
	"type":     "object",
	"required": []any{"questionId", "criteria", "totalMarks", "groundingConfidence"},
	"properties": map[string]any{
		"questionId": map[string]any{"type": "string"},
		"criteria": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"criterionId", "description", "maxMarks", "requiredEvidencePoints", "isAmbiguous"},
				"properties": map[string]any{
					"criterionId": map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"maxMarks":    map[string]any{"type": "number", "exclusiveMinimum": 0},
					"requiredEvidencePoints": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items":    map[string]any{"type": "string"},
					},
					"isAmbiguous":   map[string]any{"type": "boolean"},
					"ambiguityNote": map[string]any{"type": []any{"string", "null"}},
				},
			},
		},
		"totalMarks":          map[string]any{"type": "number", "exclusiveMinimum": 0},
		"groundingConfidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
})

var scoringSchema = genclient.MustCompileSchema(map[string]any{
	"type":     "object",
	"required": []any{"criterionId", "marksAwarded", "maxMarks", "justificationQuote", "justificationReason", "confidenceScore"},
	"properties": map[string]any{
		"criterionId":         map[string]any{"type": "string"},
		"marksAwarded":        map[string]any{"type": "number", "minimum": 0},
		"maxMarks":            map[string]any{"type": "number", "exclusiveMinimum": 0},
		"justificationQuote":  map[string]any{"type": "string"},
		"justificationReason": map[string]any{"type": "string"},
		"confidenceScore":     map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
})

var consistencySchema = genclient.MustCompileSchema(map[string]any{
	"type":     "object",
	"required": []any{"overallAssessment", "adjustments", "finalScores", "totalScore"},
	"properties": map[string]any{
		"overallAssessment": map[string]any{
			"type": "string",
			"enum": []any{"CONSISTENT", "MINOR_ISSUES", "SIGNIFICANT_ISSUES"},
		},
		"adjustments": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"criterionId", "originalScore", "recommendedScore", "reason"},
				"properties": map[string]any{
					"criterionId":      map[string]any{"type": "string"},
					"originalScore":    map[string]any{"type": "number", "minimum": 0},
					"recommendedScore": map[string]any{"type": "number", "minimum": 0},
					"reason":           map[string]any{"type": "string"},
				},
			},
		},
		"finalScores": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"criterionId", "finalScore"},
				"properties": map[string]any{
					"criterionId": map[string]any{"type": "string"},
					"finalScore":  map[string]any{"type": "number", "minimum": 0},
				},
			},
		},
		"totalScore": map[string]any{"type": "number", "minimum": 0},
		"auditNotes": map[string]any{"type": "string"},
	},
})

var feedbackSchema = genclient.MustCompileSchema(map[string]any{
	"type":     "object",
	"required": []any{"summary", "strengths", "improvements", "studyRecommendations"},
	"properties": map[string]any{
		"summary":   map[string]any{"type": "string"},
		"strengths": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"improvements": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"gap", "suggestion"},
				"properties": map[string]any{
					"criterionId": map[string]any{"type": "string"},
					"gap":         map[string]any{"type": "string"},
					"suggestion":  map[string]any{"type": "string"},
				},
			},
		},
		"studyRecommendations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"encouragementNote":    map[string]any{"type": "string"},
	},
})

var explainabilitySchema = genclient.MustCompileSchema(map[string]any{
	"type":     "object",
	"required": []any{"chainOfReasoning", "uncertaintyAreas", "reviewRecommendation", "agentAgreementScore"},
	"properties": map[string]any{
		"chainOfReasoning": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "string"},
		},
		"uncertaintyAreas": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"reviewRecommendation": map[string]any{
			"type": "string",
			"enum": []any{"AUTO_APPROVED", "NEEDS_REVIEW", "MUST_REVIEW"},
		},
		"reviewReason":        map[string]any{"type": "string"},
		"agentAgreementScore": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
})

var segmentationSchema = genclient.MustCompileSchema(map[string]any{
	"type":     "object",
	"required": []any{"answers", "segmentationConfidence"},
	"properties": map[string]any{
		"answers": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"questionId", "answerText"},
				"properties": map[string]any{
					"questionId": map[string]any{"type": "string"},
					"answerText": map[string]any{"type": []any{"string", "null"}},
				},
			},
		},
		"unmappedText":           map[string]any{"type": "string"},
		"segmentationConfidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"notes":                  map[string]any{"type": "string"},
	},
})
