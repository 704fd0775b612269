package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"labtriage/internal/config"
	"labtriage/internal/queue"
	"labtriage/internal/testsupport"
)

const criticalReply = `{
  "findings": ["Hemoglobin 8.5 g/dL is below the critical threshold"],
  "risk_level": "Critical",
  "policy_level": "Level 5",
  "summary": "Severe anemia",
  "policy_citation": "Hemoglobin < 9 => Critical",
  "analogy": "Your blood is short on oxygen carriers."
}`

const noteReply = "1. Clinical Impression: Severe anemia.\n2. Policy Justification: Level 5.\n3. Action Plan: Page the on-call physician.\n4. Patient Explanation: Your blood is short on oxygen carriers."

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	llmCalls   *atomic.Int64
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	calls := &atomic.Int64{}
	server := httptest.NewServer(fakeReasoningService(calls))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.LLM.BaseURL = server.URL
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
		llmCalls:   calls,
	}
}

// fakeReasoningService answers chat completion requests: note prompts get a
// note body, the health probe gets {"ok":true}, everything else a critical
// analysis.
func fakeReasoningService(calls *atomic.Int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[len(req.Messages)-1].Content
		}
		content := criticalReply
		switch {
		case strings.HasPrefix(prompt, "Write a professional"):
			content = noteReply
		case strings.Contains(prompt, `{"ok":true}`):
			content = `{"ok":true}`
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	})
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
