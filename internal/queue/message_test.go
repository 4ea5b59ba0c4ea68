package queue

import (
	"reflect"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		WorkItemID: "item-123",
		Kind:       KindArticle,
		Attempt:    2,
		RequestID:  "request-456",
		EnqueuedAt: "2026-01-30T22:00:00Z",
		Version:    MessageVersion,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestMessageValidate(t *testing.T) {
	cases := map[string]Message{
		"missing id":   {Kind: KindStructure, Attempt: 1},
		"unknown kind": {WorkItemID: "i", Kind: "summary", Attempt: 1},
		"zero attempt": {WorkItemID: "i", Kind: KindStructure},
	}
	for name, msg := range cases {
		if err := msg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if err := (Message{WorkItemID: "i", Kind: KindStructure, Attempt: 1}).Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}
}
