package queue_test

import (
	"encoding/json"
	"testing"

	"labtriage/internal/queue"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]queue.Status{
		"Pending":     queue.StatusPending,
		"In-progress": queue.StatusInProgress,
		"InProgress":  queue.StatusInProgress,
		"in progress": queue.StatusInProgress,
		"processed":   queue.StatusProcessed,
		"FAILED":      queue.StatusFailed,
		"":            queue.StatusPending,
	}
	for input, want := range cases {
		got, ok := queue.ParseStatus(input)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
	if _, ok := queue.ParseStatus("archived"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestPayloadJSONShapes(t *testing.T) {
	var values queue.Payload
	if err := json.Unmarshal([]byte(`{"Creatinine": 2.1, "eGFR": 2000}`), &values); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if values.IsNarrative() || values.String() != "Creatinine: 2.1; eGFR: 2000" {
		t.Fatalf("unexpected object payload %q", values.String())
	}

	var text queue.Payload
	if err := json.Unmarshal([]byte(`"Ovaries normal size."`), &text); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if !text.IsNarrative() || text.String() != "Ovaries normal size." {
		t.Fatalf("unexpected text payload %#v", text)
	}

	var empty queue.Payload
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || !empty.IsZero() {
		t.Fatalf("expected empty payload, got %#v err=%v", empty, err)
	}
	if err := json.Unmarshal([]byte(`[1,2]`), &empty); err == nil {
		t.Fatal("expected error for array payload")
	}
}
