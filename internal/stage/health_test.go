package stage

import (
	"context"
	"testing"
)

func TestRunChecksPreservesOrderAndSkipsNil(t *testing.T) {
	checks := RunChecks(context.Background(),
		CheckerFunc(func(context.Context) Health { return Healthy("store") }),
		nil,
		CheckerFunc(func(context.Context) Health { return Unhealthy("policy", "file missing") }),
	)
	if len(checks) != 2 {
		t.Fatalf("expected 2 results, got %d", len(checks))
	}
	if checks[0].Name != "store" || checks[1].Name != "policy" {
		t.Fatalf("unexpected order: %+v", checks)
	}
	if AllReady(checks) {
		t.Fatal("expected AllReady to be false with an unhealthy check")
	}
	if checks[1].Detail != "file missing" {
		t.Fatalf("unexpected detail: %q", checks[1].Detail)
	}
}

func TestAllReadyEmpty(t *testing.T) {
	if !AllReady(nil) {
		t.Fatal("expected empty results to be ready")
	}
	if !AllReady([]Health{HealthyWithDetail("llm", "openai/gpt-4o")}) {
		t.Fatal("expected healthy result to be ready")
	}
}
