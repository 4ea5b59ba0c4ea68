package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"writer-backend/internal/pipeline"
	"writer-backend/internal/queue"
)

// Processor runs one generation job.
type Processor interface {
	ProcessJob(ctx context.Context, msg queue.Message) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrInvalidMessage indicates a decoded message no worker can process.
type ErrInvalidMessage struct {
	Meta      MessageMeta
	RequestID string
	Err       error
}

func (e ErrInvalidMessage) Error() string {
	if e.Err == nil {
		return "invalid message"
	}
	return "invalid message: " + e.Err.Error()
}

// ErrProcess indicates processing failed after successful parsing. The
// message should be redelivered.
type ErrProcess struct {
	WorkItemID string
	Kind       queue.Kind
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process job"
	}
	return "process job: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err means the message should be dropped.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		invalid ErrInvalidMessage
	)
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &invalid)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if err := msg.Validate(); err != nil {
		return msg, meta, ErrInvalidMessage{Meta: meta, RequestID: msg.RequestID, Err: err}
	}
	return msg, meta, nil
}

// HandleMessage parses a payload and hands it to proc. A job whose work item
// no longer exists is treated as invalid.
func HandleMessage(ctx context.Context, proc Processor, body string) (queue.Message, error) {
	if proc == nil {
		return queue.Message{}, errors.New("job processor not configured")
	}
	msg, meta, err := ParseMessage(body)
	if err != nil {
		return msg, err
	}

	ctx = pipeline.WithRequestID(ctx, msg.RequestID)
	if err := proc.ProcessJob(ctx, msg); err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			return msg, ErrInvalidMessage{Meta: meta, RequestID: msg.RequestID, Err: err}
		}
		return msg, ErrProcess{WorkItemID: msg.WorkItemID, Kind: msg.Kind, RequestID: msg.RequestID, Err: err}
	}
	return msg, nil
}
