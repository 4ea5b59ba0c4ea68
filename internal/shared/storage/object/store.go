package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object has the key.
var ErrNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Key         string `json:"key"`
	SizeBytes   int64  `json:"sizeBytes"`
	ContentType string `json:"contentType"`
}

// ObjectStore saves and retrieves binary objects under an owner namespace.
// An empty contentType is detected from the first bytes.
type ObjectStore interface {
	Save(ctx context.Context, owner, fileName, contentType string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
