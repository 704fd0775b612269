package policy_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"labtriage/internal/policy"
	"labtriage/internal/services"
)

func TestFileSourceReadsFreshEachCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	if err := os.WriteFile(path, []byte("Hemoglobin < 9 => Critical\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	source := policy.NewFileSource(path)

	text, err := source.Read(context.Background())
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if text != "Hemoglobin < 9 => Critical" {
		t.Fatalf("unexpected text %q", text)
	}

	if err := os.WriteFile(path, []byte("Hemoglobin < 7 => Critical"), 0o644); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}
	text, err = source.Read(context.Background())
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if text != "Hemoglobin < 7 => Critical" {
		t.Fatalf("expected updated policy, got %q", text)
	}
}

func TestFileSourceFailuresAreConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	binary := filepath.Join(dir, "binary.txt")
	if err := os.WriteFile(binary, []byte{0xff, 0xfe, 0x00}, 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	for name, source := range map[string]policy.Source{
		"missing": policy.NewFileSource(filepath.Join(dir, "missing.txt")),
		"empty":   policy.NewFileSource(empty),
		"binary":  policy.NewFileSource(binary),
		"unset":   policy.NewFileSource(""),
		"static":  policy.StaticSource(" "),
	} {
		_, err := source.Read(context.Background())
		if !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestContainsCitation(t *testing.T) {
	text := "Level 5 (Critical):\n  Hemoglobin < 9 => Critical.\nLevel 1: routine"
	if !policy.ContainsCitation(text, "Hemoglobin < 9 => Critical") {
		t.Fatal("expected citation to match")
	}
	if !policy.ContainsCitation(text, "Level 5 (Critical): Hemoglobin < 9") {
		t.Fatal("expected whitespace-insensitive match across lines")
	}
	if policy.ContainsCitation(text, "Hemoglobin < 10 => Critical") {
		t.Fatal("expected invented citation to fail")
	}
	if policy.ContainsCitation(text, "   ") {
		t.Fatal("expected blank citation to fail")
	}
}
