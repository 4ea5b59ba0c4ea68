package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"writer-backend/internal/pipeline"
	"writer-backend/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeProcessor struct {
	err error
}

func (f fakeProcessor) ProcessJob(ctx context.Context, msg queue.Message) error {
	return f.err
}

func sqsMessage(t *testing.T, id string, body string) sqstypes.Message {
	t.Helper()
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(body),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func jobBody(t *testing.T) string {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{WorkItemID: "item-1", Kind: queue.KindStructure, Attempt: 1, RequestID: "req-1", Version: queue.MessageVersion})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	return string(body)
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	handleMessage(context.Background(), client, "queue", fakeProcessor{}, sqsMessage(t, "m1", jobBody(t)))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	handleMessage(context.Background(), client, "queue", fakeProcessor{err: errors.New("boom")}, sqsMessage(t, "m2", jobBody(t)))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesUnrecoverableMessages(t *testing.T) {
	cases := map[string]struct {
		body string
		proc fakeProcessor
	}{
		"invalid json": {body: "{bad-json"},
		"empty body":   {body: ""},
		"unknown kind": {body: `{"workItemId":"item-1","kind":"video","attempt":1}`},
		"missing item": {body: "", proc: fakeProcessor{err: pipeline.ErrNotFound}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body := tc.body
			if name == "missing item" {
				body = jobBody(t)
			}
			client := &fakeSQS{}
			handleMessage(context.Background(), client, "queue", tc.proc, sqsMessage(t, "m3", body))
			if len(client.deleted) != 1 {
				t.Fatalf("expected delete, got %d", len(client.deleted))
			}
		})
	}
}
