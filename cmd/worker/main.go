// Command worker runs the pipeline workers: one polling the recognition task
// queue, one polling the evaluation task queue. Both share a single Temporal
// client connection and dependency set.
package main

import (
	"context"
	"log"

	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/oakgrove/gradepipe/internal/config"
	"github.com/oakgrove/gradepipe/internal/worker"
	"github.com/oakgrove/gradepipe/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	deps, err := worker.BuildDeps(context.Background(), cfg)
	if err != nil {
		log.Fatalf("build dependencies: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("connect temporal: %v", err)
	}
	defer c.Close()

	recognitionWorker := sdkworker.New(c, workflow.QueueRecognition, sdkworker.Options{})
	worker.RegisterRecognition(recognitionWorker, deps)

	evaluationWorker := sdkworker.New(c, workflow.QueueEvaluation, sdkworker.Options{})
	worker.RegisterEvaluation(evaluationWorker, deps)

	if err := recognitionWorker.Start(); err != nil {
		log.Fatalf("start recognition worker: %v", err)
	}
	defer recognitionWorker.Stop()

	if err := evaluationWorker.Run(sdkworker.InterruptCh()); err != nil {
		log.Fatalf("run evaluation worker: %v", err)
	}
}
