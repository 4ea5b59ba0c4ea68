package queue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind selects the generation step a job runs.
type Kind string

const (
	KindStructure Kind = "structure"
	KindArticle   Kind = "article"
)

// MessageVersion is the payload schema written by this build.
const MessageVersion = 1

// Message asks a worker to run one generation attempt for a work item.
type Message struct {
	WorkItemID string `json:"workItemId"`
	Kind       Kind   `json:"kind"`
	Attempt    int    `json:"attempt"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// Validate reports payloads a worker can never process.
func (m Message) Validate() error {
	if strings.TrimSpace(m.WorkItemID) == "" {
		return fmt.Errorf("missing work item id")
	}
	if m.Kind != KindStructure && m.Kind != KindArticle {
		return fmt.Errorf("unknown job kind %q", m.Kind)
	}
	if m.Attempt < 1 {
		return fmt.Errorf("invalid attempt %d", m.Attempt)
	}
	return nil
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
