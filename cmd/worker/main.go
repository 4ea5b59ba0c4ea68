package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"writer-backend/internal/bootstrap"
	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/metrics"
	"writer-backend/internal/shared/storage/db"
	"writer-backend/internal/shared/telemetry"
	"writer-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 600
	defaultShutdownTimeoutSec = 30
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithSecrets(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	telemetry.Init(telemetry.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "writer-worker"})

	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		DBOptions:      db.OptionsFromEnv(db.DefaultWorkerOptions()),
		SkipRouter:     true,
		SkipMigrations: true,
	})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	concurrency := max(1, cfg.WorkerConcurrency)
	switch cfg.QueueBackend {
	case "sqs":
		err = runSQS(ctx, cfg, app)
	case "pubsub":
		err = runPubSub(ctx, cfg, app, concurrency)
	default:
		log.Fatalf("worker needs QUEUE_BACKEND=sqs or pubsub, got %q", cfg.QueueBackend)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker: %v", err)
	}
}

func runSQS(ctx context.Context, cfg config.Config, app *bootstrap.App) error {
	queueURL := cfg.SQSQueueURL
	visibilitySeconds := envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	shutdownTimeout := time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second
	concurrency := max(1, cfg.WorkerConcurrency)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return err
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"backend":     "sqs",
		"queue":       queueURL,
		"concurrency": concurrency,
		"visibility":  visibilitySeconds,
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// In-flight jobs finish even after shutdown is requested.
				handleMessage(context.WithoutCancel(ctx), sqsClient, queueURL, app.Pipeline, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
	return nil
}

func runPubSub(ctx context.Context, cfg config.Config, app *bootstrap.App, concurrency int) error {
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID, cfg.GCPClientOptions()...)
	if err != nil {
		return err
	}
	defer client.Close()

	sub := client.Subscription(cfg.PubSubSubscription)
	sub.ReceiveSettings.MaxOutstandingMessages = concurrency
	sub.ReceiveSettings.NumGoroutines = 1

	telemetry.Info("worker.started", map[string]any{
		"backend":      "pubsub",
		"subscription": cfg.PubSubSubscription,
		"concurrency":  concurrency,
	})
	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		metrics.IncJobsReceived()
		fields := map[string]any{"pubsub_message_id": m.ID}
		if m.DeliveryAttempt != nil {
			fields["receive_count"] = *m.DeliveryAttempt
		}
		if ack := process(ctx, app.Pipeline, string(m.Data), fields); ack {
			m.Ack()
			return
		}
		m.Nack()
	})
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, proc workerproc.Processor, msg sqstypes.Message) {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if process(ctx, proc, aws.ToString(msg.Body), fields) {
		deleteMessage(ctx, client, queueURL, msg, fields)
	}
}

// process runs one payload and reports whether the message should be
// acknowledged. Unrecoverable payloads are acknowledged so they stop
// redelivering; processing failures are left for redelivery.
func process(ctx context.Context, proc workerproc.Processor, body string, fields map[string]any) bool {
	decoded, err := workerproc.HandleMessage(ctx, proc, body)
	if decoded.WorkItemID != "" {
		fields["item_id"] = decoded.WorkItemID
		fields["kind"] = string(decoded.Kind)
		fields["attempt"] = decoded.Attempt
	}
	if strings.TrimSpace(decoded.RequestID) != "" {
		fields["request_id"] = decoded.RequestID
	}
	if err == nil {
		telemetry.Info("worker.job.completed", fields)
		return true
	}

	fields["error"] = err.Error()
	if workerproc.Unrecoverable(err) {
		meta := workerproc.ComputeMeta(body)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		telemetry.Error("worker.job.dropped", fields)
		metrics.IncJobsDeletedUnrecoverable()
		return true
	}
	telemetry.Error("worker.job.failed", fields)
	return false
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.job.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.job.delete_failed", fields)
		return false
	}
	return true
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
