package object

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// Sniff resolves the content type of r when contentType is empty and returns a
// reader that still yields every byte.
func Sniff(r io.Reader, contentType string) (io.Reader, string, error) {
	if contentType != "" {
		return r, contentType, nil
	}
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", fmt.Errorf("read sniff: %w", err)
	}
	return io.MultiReader(bytes.NewReader(head[:n]), r), http.DetectContentType(head[:n]), nil
}
