package editor

import "errors"

var (
	ErrSessionNotFound = errors.New("editor session not found")
	ErrSessionConflict = errors.New("editor session changed concurrently")
	ErrSectionNotFound = errors.New("section not found")
	ErrIndexOutOfRange = errors.New("section index out of range")
	ErrUnknownField    = errors.New("unknown field")
	ErrWrongStage      = errors.New("work item is not editable in its current stage")
)
