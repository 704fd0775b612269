package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"labtriage/internal/queue"
	"labtriage/internal/testsupport"
)

func TestQueueStatusAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	testsupport.NewItem(t, env.store, "alpha", queue.StatusPending, map[string]any{"Hemoglobin": 8.5})
	beta := testsupport.NewItem(t, env.store, "beta", queue.StatusPending, map[string]any{"Creatinine": 2.1})
	beta.SetFailed("Failed (Unknown)", "analysis failed")
	if err := env.store.Update(ctx, beta); err != nil {
		t.Fatalf("beta failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Failed")
	requireContains(t, out, "Total")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "alpha")
	requireContains(t, out, "beta")
	requireContains(t, out, "Failed (Unknown)")

	out, _, err = runCLI(t, []string{"queue", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if strings.Contains(out, "alpha") {
		t.Fatalf("expected pending item to be filtered out, got %q", out)
	}
	requireContains(t, out, "beta")
}

func TestQueueListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewItem(t, env.store, "alpha", queue.StatusPending, map[string]any{"Hemoglobin": 8.5})

	out, _, err := runCLI(t, []string{"queue", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(items) != 1 || items[0]["id"] != "alpha" || items[0]["status"] != "pending" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"queue", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestQueueRetryAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	alpha := testsupport.NewItem(t, env.store, "alpha", queue.StatusPending, nil)
	alpha.SetFailed("Failed (Unknown)", "timeout")
	if err := env.store.Update(ctx, alpha); err != nil {
		t.Fatalf("alpha failed: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed items")

	updated := testsupport.MustGet(t, env.store, "alpha")
	if updated.Status != queue.StatusPending || updated.FinalStatus != "" {
		t.Fatalf("expected pending with cleared result, got %s %q", updated.Status, updated.FinalStatus)
	}

	out, _, err = runCLI(t, []string{"queue", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("queue retry again: %v", err)
	}
	requireContains(t, out, "No failed items to retry")

	updated.SetFailed("Failed (Unknown)", "timeout")
	if err := env.store.Update(ctx, updated); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	testsupport.NewItem(t, env.store, "beta", queue.StatusPending, nil)

	if _, _, err := runCLI(t, []string{"queue", "clear"}, env.configPath); err == nil {
		t.Fatal("expected clear without a filter to fail")
	}

	out, _, err = runCLI(t, []string{"queue", "clear", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 items")

	remaining, err := env.store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "beta" {
		t.Fatalf("expected only beta to remain, got %d items", len(remaining))
	}
}
