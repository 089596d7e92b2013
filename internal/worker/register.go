package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/oakgrove/gradepipe/internal/evaluation"
	"github.com/oakgrove/gradepipe/internal/recognition"
	"github.com/oakgrove/gradepipe/internal/segmentation"
	"github.com/oakgrove/gradepipe/internal/workflow"
	"github.com/oakgrove/gradepipe/pkg/activity"
)

// RegisterRecognition registers the pipeline workflow and the recognition
// activities on the recognition-queue worker. Workflows start on this queue,
// so the workflow definition lives here.
func RegisterRecognition(w sdkworker.Worker, d *Deps) {
	base := activity.NewBaseActivities(d.Sink)
	acts := recognition.NewActivities(
		base,
		d.Client,
		d.Stores.Artifacts,
		d.Stores.Pages,
		d.Blobs,
		d.Cfg.Pipeline.MaxPagesPerScript,
	)

	w.RegisterWorkflow(workflow.ScriptPipelineWorkflow)
	w.RegisterActivity(acts.IngestArtifact)
	w.RegisterActivity(acts.RecognizePage)
	w.RegisterActivity(acts.AggregatePages)
}

// RegisterEvaluation registers the segmentation and evaluation activities on
// the evaluation-queue worker.
func RegisterEvaluation(w sdkworker.Worker, d *Deps) {
	base := activity.NewBaseActivities(d.Sink)

	segActs := segmentation.NewActivities(base, d.Chain, d.Stores.Artifacts, d.Stores.Exams)
	evalActs := evaluation.NewActivities(base, d.Chain, d.Stores, d.Locks, d.Cfg.Pipeline.EvaluationLockTTL)

	w.RegisterActivity(segActs.SegmentAnswers)
	w.RegisterActivity(evalActs.PrepareScript)
	w.RegisterActivity(evalActs.EvaluateQuestion)
	w.RegisterActivity(evalActs.CheckScriptCompletion)
}
