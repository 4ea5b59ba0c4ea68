package workerproc

import (
	"context"
	"errors"
	"testing"

	"writer-backend/internal/pipeline"
	"writer-backend/internal/queue"
)

type fakeProcessor struct {
	err       error
	got       queue.Message
	requestID string
}

func (f *fakeProcessor) ProcessJob(ctx context.Context, msg queue.Message) error {
	f.got = msg
	f.requestID = pipeline.RequestIDFromContext(ctx)
	return f.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	return string(body)
}

func TestParseMessageErrors(t *testing.T) {
	if _, _, err := ParseMessage("  "); !errors.As(err, &ErrEmptyBody{}) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	_, meta, err := ParseMessage("{bad")
	if !errors.As(err, &ErrDecode{}) || meta.BodyLen != 4 || meta.BodySHA == "" {
		t.Fatalf("expected ErrDecode with meta, got %v %+v", err, meta)
	}
	body := encode(t, queue.Message{WorkItemID: "item-1", Kind: "image", Attempt: 1})
	if _, _, err := ParseMessage(body); !errors.As(err, &ErrInvalidMessage{}) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestHandleMessagePassesRequestID(t *testing.T) {
	proc := &fakeProcessor{}
	body := encode(t, queue.Message{WorkItemID: "item-1", Kind: queue.KindStructure, Attempt: 2, RequestID: "req-9"})

	msg, err := HandleMessage(context.Background(), proc, body)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if msg.WorkItemID != "item-1" || proc.got.Attempt != 2 || proc.requestID != "req-9" {
		t.Fatalf("unexpected dispatch %+v request=%q", proc.got, proc.requestID)
	}
}

func TestHandleMessageClassifiesFailures(t *testing.T) {
	body := encode(t, queue.Message{WorkItemID: "item-1", Kind: queue.KindArticle, Attempt: 1})

	_, err := HandleMessage(context.Background(), &fakeProcessor{err: errors.New("db down")}, body)
	var procErr ErrProcess
	if !errors.As(err, &procErr) || procErr.Kind != queue.KindArticle || Unrecoverable(err) {
		t.Fatalf("expected recoverable ErrProcess, got %v", err)
	}

	_, err = HandleMessage(context.Background(), &fakeProcessor{err: pipeline.ErrNotFound}, body)
	if !Unrecoverable(err) {
		t.Fatalf("missing work item should be unrecoverable, got %v", err)
	}
}
