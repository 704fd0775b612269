package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"labtriage/internal/queue"
	"labtriage/internal/testsupport"
)

func TestNoteCommandPrintsWrittenNote(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewItem(t, env.store, "alpha", queue.StatusPending, map[string]any{"Hemoglobin": 8.5})

	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, []string{"note", "alpha"}, env.configPath)
	if err != nil {
		t.Fatalf("note: %v", err)
	}
	requireContains(t, out, "OFFICIAL HOSPITAL CLINICAL NOTE")
	requireContains(t, out, "PATIENT NAME:  Patient alpha")
	requireContains(t, out, "Clinical Impression: Severe anemia")
}

func TestNoteCommandSynthesizesWithoutNoteFile(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewItem(t, env.store, "alpha", queue.StatusPending, map[string]any{"Hemoglobin": 8.5})

	dir := t.TempDir()
	out, _, err := runCLI(t, []string{"note", "alpha", "--output", dir}, env.configPath)
	if err != nil {
		t.Fatalf("note --output: %v", err)
	}
	requireContains(t, out, "assembled from stored analysis")

	matches, err := filepath.Glob(filepath.Join(dir, "Report_Patient_alpha_*.txt"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one exported note, got %v (%v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "RISK ASSESSMENT: Unknown") {
		t.Fatalf("expected synthesized body, got %q", data)
	}
	if env.llmCalls.Load() != 0 {
		t.Fatalf("export should not call the reasoning service")
	}
}

func TestShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewItem(t, env.store, "alpha", queue.StatusPending, map[string]any{"Hemoglobin": 8.5})
	if _, _, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, []string{"show", "alpha"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Patient alpha")
	requireContains(t, out, "Level 5")
	requireContains(t, out, "Hemoglobin < 9 => Critical")
	requireContains(t, out, "Processed (Critical)")

	if _, _, err := runCLI(t, []string{"show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown id")
	}
}
