package generation

import (
	"context"
	"errors"
	"fmt"

	"writer-backend/internal/content"
	"writer-backend/internal/requests"
)

// Client produces outlines and articles. Implementations never retry on
// their own; retries are user initiated.
type Client interface {
	GenerateStructure(ctx context.Context, req requests.GenerationRequest) (content.StructurePayload, error)
	GenerateArticle(ctx context.Context, structure content.StructurePayload, req requests.GenerationRequest) (content.ArticlePayload, error)
}

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindUpstream      ErrorKind = "upstream"
	KindInvalidOutput ErrorKind = "invalid_output"
)

// Error is returned by every Client implementation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a generation error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

// wrap classifies err. Context deadline errors become timeouts, anything not
// already classified is an upstream failure.
func wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

func invalidOutput(op string, err error) error {
	return &Error{Kind: KindInvalidOutput, Op: op, Err: err}
}
