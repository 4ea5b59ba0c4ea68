package pipeline

import "errors"

var (
	ErrNotFound          = errors.New("work item not found")
	ErrInvalidTransition = errors.New("invalid stage transition")
	// ErrStaleEdit means the item changed since the caller read it.
	ErrStaleEdit = errors.New("work item was modified concurrently")
	// ErrRevisionConflict is the repository-level compare-and-swap failure.
	ErrRevisionConflict = errors.New("revision conflict")
	ErrForbidden        = errors.New("work item belongs to another user")
)
