// Package evaluation implements the Temporal activities of the evaluation
// half of the pipeline: script materialization from segmentation output,
// per-question evaluation through the five-stage agent chain, and script
// completion fan-in. Question evaluation is guarded by an expiring
// idempotency lock so at-least-once delivery still yields at most one
// effective evaluation per (run, script, question, version).
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oakgrove/gradepipe/internal/agents"
	"github.com/oakgrove/gradepipe/internal/domain"
	"github.com/oakgrove/gradepipe/internal/lockcache"
	"github.com/oakgrove/gradepipe/internal/store"
	pkgactivity "github.com/oakgrove/gradepipe/pkg/activity"
)

const lockKeyPrefix = "eval_lock:"

// Activities bundles the evaluation activities and their dependencies.
type Activities struct {
	pkgactivity.BaseActivities
	chain     *agents.Chain
	artifacts store.ArtifactStore
	scripts   store.ScriptStore
	exams     store.ExamStore
	records   store.RecordStore
	locks     lockcache.Cache
	lockTTL   time.Duration
	events    *EventEmitter
}

// NewActivities wires the evaluation activities. lockTTL bounds how long a
// crashed worker can hold a question's idempotency lock.
func NewActivities(
	base pkgactivity.BaseActivities,
	chain *agents.Chain,
	stores store.Stores,
	locks lockcache.Cache,
	lockTTL time.Duration,
) *Activities {
	return &Activities{
		BaseActivities: base,
		chain:          chain,
		artifacts:      stores.Artifacts,
		scripts:        stores.Scripts,
		exams:          stores.Exams,
		records:        stores.Records,
		locks:          locks,
		lockTTL:        lockTTL,
		events:         NewEventEmitter(base),
	}
}

// PrepareScriptInput carries the segmentation output to materialize.
type PrepareScriptInput struct {
	ArtifactID      string                    `json:"artifactId"`
	Segmentation    domain.SegmentationResult `json:"segmentation"`
	OCRConfidence   float64                   `json:"ocrConfidence"`
	OCRQualityFlags []domain.QualityFlag      `json:"ocrQualityFlags"`
	TraceID         string                    `json:"traceId"`
}

// Validate checks the input before any store access.
func (in *PrepareScriptInput) Validate() error {
	if in.ArtifactID == "" {
		return fmt.Errorf("artifactId is required")
	}
	if len(in.Segmentation.Answers) == 0 {
		return fmt.Errorf("segmentation carries no answers")
	}
	return nil
}

// PrepareScriptOutput identifies the materialized script and the evaluation
// fan-out it calls for.
type PrepareScriptOutput struct {
	ScriptID    string   `json:"scriptId"`
	RunID       string   `json:"runId"`
	QuestionIDs []string `json:"questionIds"`
}

// PrepareScript materializes a Script from the segmentation result and opens
// an evaluation run. A question the segmenter could not locate becomes a
// flagged answer, excluded from fan-out but still counted toward completion.
// A second delivery finds the script already stored and reuses it; the store
// enforces one script per artifact.
func (a *Activities) PrepareScript(ctx context.Context, in PrepareScriptInput) (*PrepareScriptOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(errTagValidation, err, "invalid prepare input")
	}

	artifact, err := a.artifacts.FindByID(ctx, in.ArtifactID)
	if err != nil {
		return nil, nonRetryable(errTagEvaluation, err, "artifact lookup failed")
	}

	answers := make([]domain.ScriptAnswer, 0, len(in.Segmentation.Answers))
	for _, sa := range in.Segmentation.Answers {
		answer := domain.ScriptAnswer{QuestionID: sa.QuestionID}
		if sa.AnswerText == nil {
			answer.IsFlagged = true
		} else {
			answer.Text = *sa.AnswerText
		}
		answers = append(answers, answer)
	}

	script := &domain.Script{
		ID:                     uuid.New().String(),
		InstitutionID:          artifact.InstitutionID,
		ExamID:                 artifact.ExamID,
		ArtifactID:             artifact.ID,
		StudentMeta:            artifact.StudentMeta,
		Answers:                answers,
		Source:                 domain.SourceOCR,
		OCRConfidenceAverage:   in.OCRConfidence,
		OCRQualityFlags:        in.OCRQualityFlags,
		SegmentationConfidence: in.Segmentation.SegmentationConfidence,
		UnmappedText:           in.Segmentation.UnmappedText,
		Status:                 domain.ScriptEvaluating,
	}
	if err := script.Validate(); err != nil {
		return nil, nonRetryable(errTagValidation, err, "materialized script invalid")
	}

	if err := a.scripts.Insert(ctx, script); err != nil {
		if !errors.Is(err, domain.ErrDuplicateScript) {
			return nil, retryable(errTagEvaluation, err, "persist script")
		}
		// Duplicate delivery after a crash; the first write won.
		script, err = a.scripts.FindByArtifact(ctx, artifact.ID)
		if err != nil {
			return nil, retryable(errTagEvaluation, err, "load existing script")
		}
		pkgactivity.SafeLog(ctx, "Script already materialized, reusing",
			"artifact_id", artifact.ID,
			"script_id", script.ID)
	}

	if err := a.artifacts.SetStatus(ctx, artifact.ID, domain.ArtifactEvaluating, ""); err != nil {
		return nil, retryable(errTagEvaluation, err, "mark artifact evaluating")
	}

	return &PrepareScriptOutput{
		ScriptID:    script.ID,
		RunID:       uuid.New().String(),
		QuestionIDs: script.EvaluableQuestionIDs(),
	}, nil
}

// EvaluateQuestionInput identifies one question of one script in one run.
type EvaluateQuestionInput struct {
	RunID      string `json:"runId"`
	ScriptID   string `json:"scriptId"`
	QuestionID string `json:"questionId"`
	TraceID    string `json:"traceId"`
}

// Validate checks the input before any work.
func (in *EvaluateQuestionInput) Validate() error {
	if in.RunID == "" || in.ScriptID == "" || in.QuestionID == "" {
		return fmt.Errorf("runId, scriptId and questionId are required")
	}
	return nil
}

// EvaluateQuestionOutput reports the effective evaluation. Performed is false
// when a duplicate delivery found the work already done or in flight.
type EvaluateQuestionOutput struct {
	Performed            bool                        `json:"performed"`
	TotalScore           float64                     `json:"totalScore"`
	MaxPossibleScore     float64                     `json:"maxPossibleScore"`
	PercentageScore      float64                     `json:"percentageScore"`
	ReviewRecommendation domain.ReviewRecommendation `json:"reviewRecommendation"`
}

// EvaluateQuestion runs the five-stage chain for one answer and persists the
// EvaluationRecord. The idempotency lock makes the evaluation effective at
// most once: a delivery that loses the lock either finds the COMPLETE record
// (and returns it) or trusts the in-flight holder and exits. On failure the
// lock is released so the retry is not blocked for the full TTL.
func (a *Activities) EvaluateQuestion(ctx context.Context, in EvaluateQuestionInput) (*EvaluateQuestionOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(errTagValidation, err, "invalid evaluate input")
	}

	key := domain.IdempotencyKey(in.RunID, in.ScriptID, in.QuestionID)
	lockKey := lockKeyPrefix + key

	acquired, err := a.locks.SetIfAbsent(ctx, lockKey, "held", a.lockTTL)
	if err != nil {
		return nil, retryable(errTagTransport, err, "acquire idempotency lock")
	}
	if !acquired {
		existing, err := a.records.FindByKey(ctx, key)
		if err == nil && existing.Status == domain.EvaluationComplete {
			pkgactivity.SafeLog(ctx, "Evaluation already complete, absorbing duplicate",
				"idempotency_key", key)
			return recordOutput(existing, false), nil
		}
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, retryable(errTagEvaluation, err, "check existing record")
		}
		// Another delivery holds the lock and is still working. Exit without
		// error; completion is checked at fan-in.
		pkgactivity.SafeLog(ctx, "Evaluation in flight elsewhere, yielding",
			"idempotency_key", key)
		return &EvaluateQuestionOutput{Performed: false}, nil
	}

	record, err := a.evaluateLocked(ctx, in, key)
	if err != nil {
		// Release the lock so the next attempt is not stalled for the TTL.
		if delErr := a.locks.Delete(ctx, lockKey); delErr != nil {
			pkgactivity.SafeLogError(ctx, "Failed to release idempotency lock",
				"lock_key", lockKey,
				"error", delErr)
		}
		return nil, err
	}

	// The lock is left to expire; the COMPLETE record is now the signal
	// duplicate deliveries read.
	a.events.EmitQuestionEvaluated(ctx, record, in.TraceID)

	return recordOutput(record, true), nil
}

// evaluateLocked does the actual work under the idempotency lock.
func (a *Activities) evaluateLocked(ctx context.Context, in EvaluateQuestionInput, key string) (*domain.EvaluationRecord, error) {
	// The lock may have expired since a crashed delivery; the record is the
	// durable truth, so check it before spending tokens.
	if existing, err := a.records.FindByKey(ctx, key); err == nil && existing.Status == domain.EvaluationComplete {
		return existing, nil
	} else if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, retryable(errTagEvaluation, err, "check existing record")
	}

	script, err := a.scripts.FindByID(ctx, in.ScriptID)
	if err != nil {
		return nil, nonRetryable(errTagEvaluation, err, "script lookup failed")
	}
	exam, err := a.exams.FindByID(ctx, script.ExamID)
	if err != nil {
		return nil, nonRetryable(errTagEvaluation, err, "exam lookup failed")
	}
	question, err := exam.Question(in.QuestionID)
	if err != nil {
		return nil, nonRetryable(errTagEvaluation, err, "question not in exam")
	}
	answer, err := script.Answer(in.QuestionID)
	if err != nil {
		return nil, nonRetryable(errTagEvaluation, err, "answer not in script")
	}
	if answer.IsFlagged {
		return nil, nonRetryable(errTagValidation,
			fmt.Errorf("question %s was flagged during segmentation", in.QuestionID),
			"flagged answer is not evaluable")
	}

	a.RecordHeartbeat(ctx, fmt.Sprintf("evaluating question %s", in.QuestionID))

	start := time.Now()
	eval, err := a.chain.EvaluateAnswer(ctx, question, answer.Text)
	if err != nil {
		return nil, classifyGeneration(err, "evaluation chain failed")
	}

	record := &domain.EvaluationRecord{
		ID:                   uuid.New().String(),
		RunID:                in.RunID,
		ScriptID:             in.ScriptID,
		QuestionID:           in.QuestionID,
		EvaluationVersion:    domain.PipelineVersion,
		IdempotencyKey:       key,
		GroundedRubric:       eval.GroundedRubric,
		CriterionScores:      eval.CriterionScores,
		ConsistencyAudit:     eval.ConsistencyAudit,
		Feedback:             eval.Feedback,
		Explainability:       eval.Explainability,
		TotalScore:           eval.TotalScore,
		MaxPossibleScore:     eval.MaxPossibleScore,
		PercentageScore:      eval.PercentageScore,
		ReviewRecommendation: eval.ReviewRecommendation,
		Status:               domain.EvaluationComplete,
		LatencyMs:            time.Since(start).Milliseconds(),
		TokensUsed:           eval.Usage,
	}
	if err := record.Validate(); err != nil {
		return nil, nonRetryable(errTagValidation, err, "evaluation record invalid")
	}
	if err := a.records.Insert(ctx, record); err != nil {
		return nil, retryable(errTagEvaluation, err, "persist evaluation record")
	}

	pkgactivity.SafeLog(ctx, "Question evaluated",
		"script_id", in.ScriptID,
		"question_id", in.QuestionID,
		"total_score", record.TotalScore,
		"review", record.ReviewRecommendation,
		"latency_ms", record.LatencyMs)

	return record, nil
}

func recordOutput(rec *domain.EvaluationRecord, performed bool) *EvaluateQuestionOutput {
	return &EvaluateQuestionOutput{
		Performed:            performed,
		TotalScore:           rec.TotalScore,
		MaxPossibleScore:     rec.MaxPossibleScore,
		PercentageScore:      rec.PercentageScore,
		ReviewRecommendation: rec.ReviewRecommendation,
	}
}

// CheckScriptCompletionInput identifies the script whose fan-out finished.
type CheckScriptCompletionInput struct {
	ScriptID string `json:"scriptId"`
	TraceID  string `json:"traceId"`
}

// CheckScriptCompletionOutput reports the fan-in decision.
type CheckScriptCompletionOutput struct {
	Done   bool                `json:"done"`
	Status domain.ScriptStatus `json:"status"`
}

// CheckScriptCompletion moves the script to its terminal status once every
// evaluable question has a COMPLETE record. A script carrying answers the
// segmenter flagged finishes FLAGGED instead of COMPLETE so it surfaces for
// review. The check is idempotent; re-running it on a terminal script is a
// no-op.
func (a *Activities) CheckScriptCompletion(ctx context.Context, in CheckScriptCompletionInput) (*CheckScriptCompletionOutput, error) {
	if in.ScriptID == "" {
		return nil, nonRetryable(errTagValidation, fmt.Errorf("scriptId is required"), "invalid completion input")
	}

	script, err := a.scripts.FindByID(ctx, in.ScriptID)
	if err != nil {
		return nil, nonRetryable(errTagEvaluation, err, "script lookup failed")
	}
	if script.Status == domain.ScriptComplete || script.Status == domain.ScriptFlagged {
		return &CheckScriptCompletionOutput{Done: true, Status: script.Status}, nil
	}

	records, err := a.records.FindByScript(ctx, in.ScriptID, store.ListOptions{})
	if err != nil {
		return nil, retryable(errTagEvaluation, err, "load evaluation records")
	}
	evaluated := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Status == domain.EvaluationComplete || r.Status == domain.EvaluationOverridden {
			evaluated[r.QuestionID] = true
		}
	}

	for _, id := range script.EvaluableQuestionIDs() {
		if !evaluated[id] {
			return &CheckScriptCompletionOutput{Done: false, Status: script.Status}, nil
		}
	}

	status := domain.ScriptComplete
	artifactStatus := domain.ArtifactEvaluated
	if script.HasFlaggedAnswers() {
		status = domain.ScriptFlagged
		artifactStatus = domain.ArtifactFlagged
	}
	if err := a.scripts.SetStatus(ctx, script.ID, status); err != nil {
		return nil, retryable(errTagEvaluation, err, "mark script terminal")
	}
	if err := a.artifacts.SetStatus(ctx, script.ArtifactID, artifactStatus, ""); err != nil {
		return nil, retryable(errTagEvaluation, err, "mark artifact terminal")
	}

	script.Status = status
	a.events.EmitScriptCompleted(ctx, script, in.TraceID)

	return &CheckScriptCompletionOutput{Done: true, Status: status}, nil
}
