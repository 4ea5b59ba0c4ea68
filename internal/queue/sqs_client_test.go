package queue

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type captureSQS struct {
	input *sqs.SendMessageInput
}

func (c *captureSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	c.input = params
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSendEncodesMessage(t *testing.T) {
	api := &captureSQS{}
	client := NewSQSClientWithAPI(api, "https://sqs.example/queue")

	msg := Message{WorkItemID: "item-1", Kind: KindStructure, Attempt: 1, Version: MessageVersion}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if aws.ToString(api.input.QueueUrl) != "https://sqs.example/queue" {
		t.Fatalf("unexpected queue url %q", aws.ToString(api.input.QueueUrl))
	}
	got, err := DecodeMessage([]byte(aws.ToString(api.input.MessageBody)))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got != msg {
		t.Fatalf("body mismatch: got %+v", got)
	}
	if aws.ToString(api.input.MessageAttributes["kind"].StringValue) != "structure" {
		t.Fatalf("missing kind attribute")
	}
}
