package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"writer-backend/internal/bootstrap"
	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/storage/db"
	"writer-backend/internal/shared/telemetry"
	"writer-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp(ctx context.Context) {
	cfg, err := config.LoadWithSecrets(ctx)
	if err != nil {
		initErr = err
		return
	}
	telemetry.Init(telemetry.Config{Level: cfg.LogLevel, Service: "writer-worker-lambda"})
	built, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		DBOptions:      db.OptionsFromEnv(db.DefaultWorkerOptions()),
		SkipRouter:     true,
		SkipMigrations: true,
	})
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(func() { initApp(context.WithoutCancel(ctx)) })
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	if _, err := app.Pipeline.SweepTimeouts(ctx, time.Now()); err != nil {
		telemetry.Warn("worker.sweep_failed", map[string]any{"error": err})
	}
	return processBatch(ctx, app.Pipeline, event.Records), nil
}

// processBatch reports only retryable failures; malformed or orphaned
// messages are dropped so they do not cycle through the queue.
func processBatch(ctx context.Context, proc workerproc.Processor, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		_, err := workerproc.HandleMessage(ctx, proc, record.Body)
		if err == nil {
			continue
		}
		if workerproc.Unrecoverable(err) {
			telemetry.Warn("worker.message_dropped", map[string]any{"message_id": record.MessageId, "error": err})
			continue
		}
		telemetry.Error("worker.message_failed", map[string]any{"message_id": record.MessageId, "error": err})
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
