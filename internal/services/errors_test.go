package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"labtriage/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalService, "analyzing", "evaluate", "request failed", base)
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"analyzing", "evaluate", "request failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapRetagsDeadlineAsTimeout(t *testing.T) {
	cause := fmt.Errorf("post: %w", context.DeadlineExceeded)
	err := services.Wrap(services.ErrExternalService, "drafting", "evaluate", "", cause)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if services.Kind(err) != "timeout" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}
}

func TestDetails(t *testing.T) {
	err := fmt.Errorf("outer: %w", services.Wrap(services.ErrConfiguration, "analyzing", "read policy", "policy unreadable", errors.New("no such file")))
	details := services.Details(err)
	if details.Kind != "configuration" {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Stage != "analyzing" || details.Operation != "read policy" {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.Hint == "" || details.Cause != "no such file" {
		t.Fatalf("unexpected details: %+v", details)
	}

	plain := services.Details(errors.New("plain"))
	if plain.Kind != "unknown" || plain.Message != "plain" {
		t.Fatalf("unexpected plain details: %+v", plain)
	}
	if (services.Details(nil) != services.ErrorDetails{}) {
		t.Fatal("expected empty details for nil error")
	}
}
